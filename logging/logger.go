package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Logger is what every package logs through. Messages are printf formats.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that carry key/value fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

type level int

const (
	levelTrace level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func parseLevel(s string) level {
	for i, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return level(i)
		}
	}
	return levelTrace
}

// FmtLogger prints one plain line per entry:
//
//	2026-10-17T08:30:00Z INFO  transition committed role=doctor step=branching
//
// It backs tests and the nil-logger fallback.
type FmtLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	min    level
	now    func() time.Time
	fields map[string]any
}

// NewFmtLogger writes every level to out, or stdout when out is nil.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &FmtLogger{mu: &sync.Mutex{}, out: out, now: time.Now}
}

// AtLevel returns a copy that drops entries below lvl ("debug", "warn", ...).
func (l *FmtLogger) AtLevel(lvl string) *FmtLogger {
	cp := *l
	cp.min = parseLevel(lvl)
	return &cp
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.write(levelTrace, msg, args) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.write(levelDebug, msg, args) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.write(levelInfo, msg, args) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.write(levelWarn, msg, args) }
func (l *FmtLogger) Error(msg string, args ...any) { l.write(levelError, msg, args) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.write(levelFatal, msg, args) }

// WithContext is a no-op; the plain format has nowhere to put it.
func (l *FmtLogger) WithContext(context.Context) Logger { return l }

func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		cp.fields[k] = v
	}
	for k, v := range fields {
		cp.fields[k] = v
	}
	return &cp
}

func (l *FmtLogger) write(lvl level, msg string, args []any) {
	if lvl < l.min {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-5s %s", l.now().UTC().Format(time.RFC3339Nano), levelNames[lvl], strings.TrimSpace(msg))
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(l.fields[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = strconv.Quote(v)
		}
		sb.WriteString(" " + k + "=" + v)
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, sb.String())
}

// Nop discards everything.
type Nop struct{}

func (Nop) Trace(string, ...any)                 {}
func (Nop) Debug(string, ...any)                 {}
func (Nop) Info(string, ...any)                  {}
func (Nop) Warn(string, ...any)                  {}
func (Nop) Error(string, ...any)                 {}
func (Nop) Fatal(string, ...any)                 {}
func (n Nop) WithContext(context.Context) Logger { return n }

// Normalize swaps a nil logger for a stdout FmtLogger.
func Normalize(logger Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return logger
}

// WithFields attaches fields when logger supports them and returns it
// unchanged otherwise.
func WithFields(logger Logger, fields map[string]any) Logger {
	logger = Normalize(logger)
	if len(fields) == 0 {
		return logger
	}
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}
