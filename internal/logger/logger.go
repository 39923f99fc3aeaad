package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Options controls the process-wide logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
}

// Init installs the process-wide structured logger.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}

	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)

	l.Info("logger initialized")
}

// L returns the process-wide logger.
func L() *slog.Logger {
	return current.Load()
}

// With returns a logger carrying the given fields on every record.
func With(fields map[string]any) *slog.Logger {
	return L().With(attrs(fields)...)
}

func Debug(msg string, fields map[string]any) {
	L().Debug(msg, attrs(fields)...)
}

func Info(msg string, fields map[string]any) {
	L().Info(msg, attrs(fields)...)
}

func Warn(msg string, fields map[string]any) {
	L().Warn(msg, attrs(fields)...)
}

func Error(msg string, fields map[string]any) {
	L().Error(msg, attrs(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	L().Error(msg, append(attrs(fields), "fatal", true)...)
	os.Exit(1)
}

func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
