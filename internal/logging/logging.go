// Package logging sets up the process-wide slog.Logger: level parsing,
// an optional log file, and a third-party-log filter so verbose
// dependency chatter doesn't drown out the agent's own logs below
// debug level. Grounded on
// _examples/kadirpekel-hector/pkg/logger/logger.go and its CLI driver
// cmd/hector/logger.go.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const packagePrefix = "github.com/kagent-go/kagent"

// ParseLevel converts a level name to a slog.Level. An unrecognized
// name falls back to Info, matching the CLI's `--log-level` default.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", name)
	}
}

// OpenLogFile opens path for appending, creating it if necessary. The
// returned cleanup closes the file; callers should defer it.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// New builds a *slog.Logger writing JSON records to out at level,
// filtering out third-party library logs unless level is Debug.
func New(level slog.Level, out *os.File) *slog.Logger {
	handler := &filteringHandler{
		handler:  slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}),
		minLevel: level,
	}
	return slog.New(handler)
}

// filteringHandler wraps a slog.Handler, suppressing records whose
// caller is outside this module unless the configured level is Debug
// or lower. Dependency libraries that log through slog (jsonschema
// validators, koanf providers, MCP transports) stay quiet by default.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	return strings.Contains(fn.Name(), packagePrefix)
}
