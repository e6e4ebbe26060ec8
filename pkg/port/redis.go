package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

var commandsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "redis_commands_total",
	Help: "The total number of Redis commands handled",
}, []string{
	"command", // Upper-cased command name; unknown commands are grouped.
	"result",  // ok or error.
})

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    [][]byte
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool      // Closes the connection if true.
	writeNil        bool      // Writes a nil value if true.
	err             *string   // Error to return if set.
	writeInt        *int      // Writes an integer value if set.
	writeBulk       *[]byte   // Writes a bulk string if set.
	writeArray      *[][]byte // Writes an array of bulk strings if set.
	writeString     string    // Writes a string value if set.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisBulk(b []byte) redisOutput {
	return redisOutput{writeBulk: &b}
}

func writeRedisArray(items [][]byte) redisOutput {
	return redisOutput{writeArray: &items}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

func wrongArity(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

var errNotInteger = errors.New("value is not an integer or out of range")

func parseInt(arg []byte) (int, error) {
	i, err := strconv.Atoi(string(arg))
	if err != nil {
		return 0, errNotInteger
	}
	return i, nil
}

// knownCommands bounds the metric label cardinality.
var knownCommands = map[string]struct{}{
	"PING": {}, "QUIT": {}, "LPUSH": {}, "RPUSH": {}, "LPOP": {}, "RPOP": {}, "LLEN": {}, "LINDEX": {},
	"LSET": {}, "LINSERT": {}, "LRANGE": {}, "LPOS": {}, "LREM": {}, "LDUMP": {}, "DEL": {}, "EXISTS": {},
	"KEYS": {},
}

type redisHandler struct {
	store *ListStore
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(store *ListStore) (*redisHandler, error) {
	if store == nil {
		return nil, errors.New("expected a non-nil store")
	}
	return &redisHandler{store: store}, nil
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	command := strings.ToUpper(cmd.command)
	output := rh.dispatch(command, cmd.args)

	label, result := command, "ok"
	if _, known := knownCommands[command]; !known {
		label = "unknown"
	}
	if output.err != nil {
		result = "error"
	}
	commandsMetric.WithLabelValues(label, result).Inc()
	return output
}

func (rh *redisHandler) dispatch(command string, args [][]byte) redisOutput {
	switch command {
	case "PING":
		if len(args) == 1 {
			return writeRedisBulk(args[0])
		}
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "LPUSH", "RPUSH":
		if len(args) < 2 {
			return wrongArity(command)
		}
		length, err := rh.store.Push(string(args[0]), command == "LPUSH", args[1:]...)
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(length)
	case "LPOP", "RPOP":
		if len(args) != 1 && len(args) != 2 {
			return wrongArity(command)
		}
		count := 1
		if len(args) == 2 {
			var err error
			if count, err = parseInt(args[1]); err != nil || count < 0 {
				return writeRedisError(errors.New("value is out of range, must be positive"))
			}
		}
		values, err := rh.store.Pop(string(args[0]), command == "LPOP", count)
		if errors.Is(err, ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		}
		if len(args) == 2 {
			return writeRedisArray(values)
		}
		if len(values) == 0 {
			return writeRedisNil()
		}
		return writeRedisBulk(values[0])
	case "LLEN":
		if len(args) != 1 {
			return wrongArity(command)
		}
		length, err := rh.store.Len(string(args[0]))
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(length)
	case "LINDEX":
		if len(args) != 2 {
			return wrongArity(command)
		}
		index, err := parseInt(args[1])
		if err != nil {
			return writeRedisError(err)
		}
		value, err := rh.store.Index(string(args[0]), index)
		if errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrIndexOutOfRange) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		}
		return writeRedisBulk(value)
	case "LSET":
		if len(args) != 3 {
			return wrongArity(command)
		}
		index, err := parseInt(args[1])
		if err != nil {
			return writeRedisError(err)
		}
		if err := rh.store.Set(string(args[0]), index, args[2]); errors.Is(err, ErrKeyNotFound) {
			return writeRedisError(errors.New("no such key"))
		} else if err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "LINSERT":
		if len(args) != 4 {
			return wrongArity(command)
		}
		var before bool
		switch strings.ToUpper(string(args[1])) {
		case "BEFORE":
			before = true
		case "AFTER":
			before = false
		default:
			return writeRedisError(errors.New("syntax error"))
		}
		length, err := rh.store.Insert(string(args[0]), before, args[2], args[3])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(length)
	case "LRANGE":
		if len(args) != 3 {
			return wrongArity(command)
		}
		start, err := parseInt(args[1])
		if err != nil {
			return writeRedisError(err)
		}
		stop, err := parseInt(args[2])
		if err != nil {
			return writeRedisError(err)
		}
		values, err := rh.store.Range(string(args[0]), start, stop)
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisArray(values)
	case "LPOS":
		return rh.handlePosition(args)
	case "LREM":
		if len(args) != 3 {
			return wrongArity(command)
		}
		count, err := parseInt(args[1])
		if err != nil {
			return writeRedisError(err)
		}
		removed, err := rh.store.Remove(string(args[0]), count, args[2])
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(removed)
	case "LDUMP":
		if len(args) != 1 {
			return wrongArity(command)
		}
		dump, err := rh.store.Dump(string(args[0]))
		if errors.Is(err, ErrKeyNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		}
		return writeRedisBulk([]byte(dump))
	case "DEL", "EXISTS":
		if len(args) < 1 {
			return wrongArity(command)
		}
		keys := make([]string, len(args))
		for i, arg := range args {
			keys[i] = string(arg)
		}
		var count int
		var err error
		if command == "DEL" {
			count, err = rh.store.Delete(keys...)
		} else {
			count, err = rh.store.Exists(keys...)
		}
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(count)
	case "KEYS":
		if len(args) != 1 {
			return wrongArity(command)
		}
		keys, err := rh.store.Keys(string(args[0]))
		if err != nil {
			return writeRedisError(err)
		}
		items := make([][]byte, len(keys))
		for i, key := range keys {
			items[i] = []byte(key)
		}
		return writeRedisArray(items)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", command))
	}
}

// handlePosition serves LPOS key element [COUNT num]; a COUNT reply is an array, otherwise a single index or nil.
func (rh *redisHandler) handlePosition(args [][]byte) redisOutput {
	if len(args) != 2 && len(args) != 4 {
		return wrongArity("LPOS")
	}
	count, withCount := 1, len(args) == 4
	if withCount {
		if !strings.EqualFold(string(args[2]), "COUNT") {
			return writeRedisError(errors.New("syntax error"))
		}
		var err error
		if count, err = parseInt(args[3]); err != nil || count < 0 {
			return writeRedisError(errors.New("COUNT can't be negative"))
		}
	}
	positions, err := rh.store.Positions(string(args[0]), args[1], count)
	if err != nil {
		return writeRedisError(err)
	}
	if !withCount {
		if len(positions) == 0 {
			return writeRedisNil()
		}
		return writeRedisInt(positions[0])
	}
	items := make([][]byte, len(positions))
	for i, pos := range positions {
		items[i] = strconv.AppendInt(nil, int64(pos), 10)
	}
	return writeRedisArray(items)
}

// writeOutput writes `output` to `conn` in RESP.
func writeOutput(conn redcon.Conn, output redisOutput) {
	switch {
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeBulk != nil:
		conn.WriteBulk(*output.writeBulk)
	case output.writeArray != nil:
		conn.WriteArray(len(*output.writeArray))
		for _, item := range *output.writeArray {
			conn.WriteBulk(item)
		}
	default:
		conn.WriteString(output.writeString)
	}
}

// RunRedisServer starts a Redis protocol server serving the lists held in `store`.
func RunRedisServer(ctx context.Context, store *ListStore) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(store)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: cmd.Args[1:]}
			output := redisHandler.handle(command)
			writeOutput(conn, output)
			if output.closeConnection {
				if err := conn.Close(); err != nil {
					slog.Error("failed to close connection", "error", err)
				}
			}
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Redis connection closed.", "remote", conn.RemoteAddr(), "error", err)
			}
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()
	slog.Info("Serving Redis protocol.", "address", *address)

	select {
	case <-ctx.Done():
		serverErr := redisServer.Close()
		storeErr := store.Close()
		if exitErr := errors.Join(serverErr, storeErr); exitErr != nil {
			return fmt.Errorf("failed to close slablist: %w", exitErr)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
