package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-logger/glog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the production logger.
type Options struct {
	Level     string
	Format    string // json or console
	File      string // rotated log file, empty disables it
	Console   bool   // also write to stdout when File is set
	MaxSizeMB int
	MaxFiles  int
	MaxAgeDay int
}

// GlogAdapter exposes a go-logger logger through Logger.
type GlogAdapter struct {
	logger glog.Logger
}

func NewGlogAdapter(logger glog.Logger) GlogAdapter {
	return GlogAdapter{logger: logger}
}

func (l GlogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l GlogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l GlogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l GlogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l GlogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l GlogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l GlogAdapter) WithContext(ctx context.Context) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithContext(ctx)
	}
	return GlogAdapter{logger: l.logger.WithContext(ctx)}
}

func (l GlogAdapter) WithFields(fields map[string]any) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}

// New builds the go-logger backed Logger. The returned closer releases the
// rotated file, it is a no-op when no file is configured.
func New(opts Options) (Logger, io.Closer) {
	out, closer := Writer(opts)
	level := levelOrDefault(opts.Level)
	var base glog.Logger
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		base = glog.NewLogger(glog.WithWriter(out), glog.WithLevel(level), glog.WithLoggerTypeJSON())
	} else {
		base = glog.NewLogger(glog.WithWriter(out), glog.WithLevel(level))
	}
	return NewGlogAdapter(base), closer
}

// Writer resolves the output stream: stdout, a lumberjack rotated file or both.
func Writer(opts Options) (io.Writer, io.Closer) {
	file := strings.TrimSpace(opts.File)
	if file == "" {
		return os.Stdout, nopCloser{}
	}
	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    positiveOr(opts.MaxSizeMB, 5),
		MaxBackups: positiveOr(opts.MaxFiles, 3),
		MaxAge:     positiveOr(opts.MaxAgeDay, 28),
		Compress:   true,
	}
	if opts.Console {
		return io.MultiWriter(os.Stdout, rotated), rotated
	}
	return rotated, rotated
}

func levelOrDefault(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return "info"
	}
	return level
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
