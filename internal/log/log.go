// Package log is the leveled logging facade used throughout ctf-go: a
// minimal Logger interface, level filtering, and a Helper with
// printf-style methods.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is a logging severity. Levels are ordered; a Filter drops any
// record below its configured floor.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every adapter must implement. Log receives
// alternating key/value pairs following the level.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes records to an io.Writer via the standard log package.
type stdLogger struct {
	mu  sync.Mutex
	std *log.Logger
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{std: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := make([]interface{}, 0, len(keyvals)+1)
	buf = append(buf, level.String())
	buf = append(buf, keyvals...)
	l.std.Println(buf...)
	return nil
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a Filter passes through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// Filter wraps a Logger and drops records below a configured level.
type Filter struct {
	logger Logger
	level  Level
}

// NewFilter returns a Logger that forwards to logger only records at or
// above the configured floor (default LevelDebug, i.e. everything).
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &Filter{logger: logger, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger. A nil logger yields a Helper that discards.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelFatal+1))
	}
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, msg string) {
	_ = h.logger.Log(level, "msg", msg)
}

func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (h *Helper) Infof(format string, args ...interface{})  { h.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (h *Helper) Warnf(format string, args ...interface{})  { h.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, fmt.Sprintf(format, args...)) }
