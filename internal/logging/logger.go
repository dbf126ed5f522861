// Package logging builds the dhtmon log/slog logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MichaelS11/go-dhtnew/internal/config"
)

// Logger is the dhtmon logger. Every entry carries the service name and version.
type Logger struct {
	*slog.Logger
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New creates a Logger writing text or JSON to stderr, or stdout when
// cfg.Output is "stdout".
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		out = os.Stdout
	}
	return newLogger(cfg, version, out)
}

func newLogger(cfg config.LoggingConfig, version string, out io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: levelOf(cfg.Level)}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{slog.New(handler).With("service", "dhtmon", "version", version)}
}

// levelOf maps a level name to slog.Level, unknown names are info.
func levelOf(name string) slog.Level {
	if level, ok := levels[strings.ToLower(name)]; ok {
		return level
	}
	return slog.LevelInfo
}

// Sensor returns the logger for one sensor, its entries tagged with the
// sensor name and pin.
func (l *Logger) Sensor(cfg config.SensorConfig) *Logger {
	return &Logger{l.With("sensor", cfg.Name, "pin", cfg.Pin)}
}
