package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync"
)

const timeLayout = "2006-01-02 15:04:05,000"

// Sinks are the destinations of a LineHandler. Nil writers are skipped.
// Records at WARNING and above go to Stderr, the rest to Stdout.
type Sinks struct {
	File   io.Writer
	Stdout io.Writer
	Stderr io.Writer
}

// LineHandler is a slog.Handler producing one text line per record.
// Consecutive identical lines are written once; the next different line
// resets the suppression.
type LineHandler struct {
	shared *lineState
	level  slog.Leveler
	attrs  []boundAttr
	groups []string
}

// boundAttr is an attribute added by WithAttrs, qualified by the groups
// open at that time.
type boundAttr struct {
	prefix string
	attr   slog.Attr
}

type lineState struct {
	mu    sync.Mutex
	sinks Sinks
	last  string
}

// NewLineHandler creates a handler writing to sinks at or above level.
func NewLineHandler(sinks Sinks, level slog.Leveler) *LineHandler {
	return &LineHandler{
		shared: &lineState{sinks: sinks},
		level:  level,
	}
}

func (h *LineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(timeLayout))
	b.WriteString(" - ")
	b.WriteString(LevelName(r.Level))
	b.WriteString(" - ")
	b.WriteString(caller(r.PC))
	b.WriteString(" - ")
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a.prefix, a.attr)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})

	// The timestamp is excluded from the duplicate check.
	body := b.String()[len(timeLayout):]
	line := b.String() + "\n"

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()

	if body == h.shared.last {
		return nil
	}
	h.shared.last = body

	var firstErr error
	write := func(w io.Writer) {
		if w == nil {
			return
		}
		if _, err := io.WriteString(w, line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	write(h.shared.sinks.File)
	if r.Level >= slog.LevelWarn {
		write(h.shared.sinks.Stderr)
	} else {
		write(h.shared.sinks.Stdout)
	}
	return firstErr
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	next := *h
	next.attrs = make([]boundAttr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, boundAttr{prefix: prefix, attr: a})
	}
	return &next
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"=") {
		val = fmt.Sprintf("%q", val)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(val)
}

// caller renders the emitting function as "package.Function".
func caller(pc uintptr) string {
	if pc == 0 {
		return "-"
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.Function == "" {
		return "-"
	}
	return path.Base(f.Function)
}
