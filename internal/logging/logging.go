// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	level  slog.Level
	format string
	file   string
	out    io.Writer
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level from its name; unknown names keep info.
func WithLevel(name string) Option {
	return func(o *options) {
		o.level = ParseLevel(name)
	}
}

// WithFormat selects "json" or "text" output.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = strings.ToLower(format)
	}
}

// WithFile tees output into a size-rotated log file.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithOutput replaces stdout as the primary destination.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// New returns a logger writing JSON to stdout unless configured otherwise.
func New(opts ...Option) *slog.Logger {
	o := options{level: slog.LevelInfo, format: "json", out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	w := o.out
	if o.file != "" {
		w = io.MultiWriter(o.out, &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	var h slog.Handler
	switch o.format {
	case "text":
		h = tint.NewHandler(w, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
			NoColor:    o.file != "" || o.out != io.Writer(os.Stdout),
		})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: o.level})
	}
	return slog.New(h)
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
