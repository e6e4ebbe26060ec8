// Spins up the slablist server, compatible w/ the Redis list commands.

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/nobletooth/slablist/pkg/config"
	"github.com/nobletooth/slablist/pkg/port"
	"github.com/nobletooth/slablist/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	printVersion   = flag.Bool("print_version", false, "Print the version and exit.")
	metricsAddress = flag.String("metrics_address", ":9090",
		"The ip:port serving Prometheus metrics on /metrics; empty disables it.")
)

// serveMetrics exposes the default Prometheus registry until `ctx` is cancelled.
func serveMetrics(ctx context.Context, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down the metrics server.", "error", err)
		}
	}()

	slog.Info("Serving metrics.", "address", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server stopped.", "error", err)
	}
}

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Slablist build info.", utils.BuildAttrs()...)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	if *metricsAddress != "" {
		go serveMetrics(ctx, *metricsAddress)
	}

	store, err := port.NewListStore()
	if err != nil {
		slog.Error("Failed to create the list store.", "error", err)
		os.Exit(1)
	}
	if err := port.RunRedisServer(ctx, store); err != nil {
		slog.Error("Slablist server stopped.", "err", err)
		os.Exit(1)
	}
}
