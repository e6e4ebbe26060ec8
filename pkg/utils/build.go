// Build information, injected with -ldflags "-X github.com/nobletooth/slablist/pkg/utils.Version=...".
// CAUTION: Keep the variable names stable; the release scripts set them by name.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

var (
	TestMode   string // "true" turns invariant violations into panics.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// Unset build info falls back to placeholders; the version stays semver-valid.
	if Version == "" {
		Version = "v0.0.0-unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false", "error", err)
		}
	}
}

// BuildAttrs returns the build information as slog key-value pairs.
func BuildAttrs() []any {
	return []any{"version", Version, "commit", Commit, "build", BuildTime, "uptime", time.Since(StartTime).String()}
}
