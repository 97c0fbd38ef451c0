package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// consoleHandler renders "TIME [LEVEL] message key=value" lines.
type consoleHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	level   slog.Level
	attrs   []slog.Attr
	colored bool
}

func newConsoleHandler(w io.Writer, level slog.Level, colored bool) *consoleHandler {
	return &consoleHandler{
		mu:      &sync.Mutex{},
		w:       w,
		level:   level,
		colored: colored,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(r.Time.UTC().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(h.levelTag(r.Level))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&sb, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op; the console format is flat.
func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *consoleHandler) levelTag(level slog.Level) string {
	tag := "[" + strings.ToUpper(levelString(level)) + "]"
	if !h.colored {
		return tag
	}

	var c *color.Color
	switch {
	case level < slog.LevelInfo:
		c = color.New(color.FgCyan)
	case level < slog.LevelWarn:
		c = color.New(color.FgGreen)
	case level < slog.LevelError:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	c.EnableColor()
	return c.Sprint(tag)
}

func writeAttr(sb *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(sb, " %s=%v", a.Key, a.Value.Resolve().Any())
}
