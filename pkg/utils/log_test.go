package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for _, testCase := range []struct {
		level     LogLevel
		expected  slog.Level
		expectErr bool
	}{
		{level: LogLevelDebug, expected: slog.LevelDebug},
		{level: LogLevelInfo, expected: slog.LevelInfo},
		{level: LogLevelWarn, expected: slog.LevelWarn},
		{level: LogLevelError, expected: slog.LevelError},
		{level: "verbose", expected: slog.LevelInfo, expectErr: true},
	} {
		t.Run(string(testCase.level), func(t *testing.T) {
			got, err := parseLogLevel(testCase.level)
			assert.Equal(t, testCase.expected, got)
			assert.Equal(t, testCase.expectErr, err != nil)
		})
	}
}

func TestNewLogHandler(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(newLogHandler(&buf, HandlerTypeJSON, LogLevelWarn))
		logger.Info("dropped")
		logger.Warn("kept", "slot", 3)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record), "Expected exactly one JSON record")
		assert.Equal(t, "kept", record["msg"])
		assert.Equal(t, float64(3), record["slot"])
	})
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(newLogHandler(&buf, HandlerTypeText, LogLevelDebug))
		logger.Debug("hello", "size", 2)
		assert.Contains(t, buf.String(), "msg=hello")
		assert.Contains(t, buf.String(), "size=2")
	})
}
