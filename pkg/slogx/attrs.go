package slogx

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// KeyLoggerName is the attribute key identifying which component logged.
const KeyLoggerName = "logger"

// LoggerName returns the component-name attribute runtime loggers carry.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Error returns the conventional "error" attribute.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// RunID tags a log line with the run it belongs to.
func RunID(id uuid.UUID) slog.Attr {
	return slog.String("run_id", id.String())
}

// Mode tags a log line with the execution mode.
func Mode(mode string) slog.Attr {
	return slog.String("mode", mode)
}

// Graph tags a log line with the graph being executed.
func Graph(name string) slog.Attr {
	return slog.String("graph", name)
}

// Duration records elapsed time in milliseconds, keeping dashboards
// unit-consistent regardless of handler formatting.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d)/float64(time.Millisecond))
}
