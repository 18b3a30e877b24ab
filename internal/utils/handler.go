package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
)

var levelStyles = map[slog.Level]struct{ name, color string }{
	slog.LevelDebug: {"DEBUG", "\x1b[36m"},
	slog.LevelInfo:  {"INFO", "\x1b[32m"},
	slog.LevelWarn:  {"WARN", "\x1b[33m"},
	slog.LevelError: {"ERROR", "\x1b[31m"},
}

var tagColors = map[string]string{
	"[Bootstrap]":     "\x1b[96m",
	"[Transport]":     "\x1b[94m",
	"[HTTP]":          "\x1b[95m",
	"[WebSocket]":     "\x1b[92m",
	"[Inference]":     "\x1b[34m",
	"[Settings]":      "\x1b[35m",
	"[Registry]":      "\x1b[36m",
	"[Telemetry]":     "\x1b[92m",
	"[Storage]":       "\x1b[97m",
	"[OBSERVABILITY]": "\x1b[90m",
}

// consoleHandler renders "[time] [LEVEL] message { k=v }" with the leading
// [Tag] of the message colored.
type consoleHandler struct {
	out   io.Writer
	level slog.Leveler
	attrs []slog.Attr
	mu    *sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	style, ok := levelStyles[r.Level]
	if !ok {
		style = levelStyles[slog.LevelInfo]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s %s[%s]%s ",
		colorTime, r.Time.Format("2006-01-02 15:04:05.000"), colorReset,
		style.color, style.name, colorReset)

	if color := tagColors[leadingTag(r.Message)]; color != "" {
		b.WriteString(color + r.Message + colorReset)
	} else {
		b.WriteString(r.Message)
	}

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		b.WriteString(" {")
		write := func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		}
		for _, a := range h.attrs {
			write(a)
		}
		r.Attrs(write)
		b.WriteString(" }")
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup is flat: console lines have no nesting.
func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func leadingTag(msg string) string {
	if !strings.HasPrefix(msg, "[") {
		return ""
	}
	if end := strings.IndexByte(msg, ']'); end > 0 {
		return msg[:end+1]
	}
	return ""
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
