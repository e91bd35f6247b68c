package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/otel/trace"
)

// LogFileName is the file appended to inside LogOptions.Dir.
const LogFileName = "talkinghead.log"

// LogOptions controls InitLogger.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // json, text, or empty to pick by terminal
	Dir    string // optional directory for a log file tee
	Output io.Writer
}

// InitLogger creates a structured logger with trace correlation.
// Every log line from a traced context includes trace_id and span_id.
// The returned closer releases the log file, if one was opened.
func InitLogger(opts LogOptions) (*slog.Logger, func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	closer := func() error { return nil }
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f.Close
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var inner slog.Handler
	if useText(opts.Format, opts.Output) {
		inner = slog.NewTextHandler(out, hopts)
	} else {
		inner = slog.NewJSONHandler(out, hopts)
	}
	return slog.New(&traceHandler{inner: inner}), closer, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
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

func useText(format string, custom io.Writer) bool {
	switch format {
	case "text":
		return true
	case "json":
		return false
	}
	if custom != nil {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}

// traceHandler wraps a slog.Handler to inject trace_id and span_id from context.
type traceHandler struct {
	inner slog.Handler
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{inner: h.inner.WithGroup(name)}
}

// Discard returns a logger that drops everything. Used by tests and one-shot commands.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
