// Package log defines the leveled logger interface shared by every
// package in this module. Each package keeps its own unexported logger
// variable and exposes DisableLog/UseLogger so a caller (typically
// cmd/emberd) can wire up a concrete backend at startup. Until UseLogger
// is called, packages log nothing.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level describes the severity of a log message.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// String returns the short, uppercase form of the level used in prefixes.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRC"
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	case LevelCritical:
		return "CRT"
	default:
		return "OFF"
	}
}

// LevelFromString returns a level based on the input string s. If the
// input can't be interpreted as a valid log level, the info level and
// false are returned.
func LevelFromString(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "trace", "trc":
		return LevelTrace, true
	case "debug", "dbg":
		return LevelDebug, true
	case "info", "inf":
		return LevelInfo, true
	case "warn", "wrn":
		return LevelWarn, true
	case "error", "err":
		return LevelError, true
	case "critical", "crt":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	default:
		return LevelInfo, false
	}
}

// Logger is the interface each package-level log var satisfies. It is
// intentionally small: callers format their own messages, the backend
// only decides whether and where to write them.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Critical(args ...interface{})

	Level() Level
	SetLevel(level Level)
}

// Disabled is a Logger that drops everything. Every package's
// DisableLog assigns it to that package's log var.
var Disabled Logger = &slogLogger{level: LevelOff}

// slogLogger adapts slog.Logger to the Logger interface and adds the
// subsystem-tag-and-level semantics the rest of this module expects.
type slogLogger struct {
	subsystem string
	level     Level
	sl        *slog.Logger
}

// NewBackend creates a backend writer that emits lines to w. Individual
// subsystem loggers are created from it via Logger(tag).
func NewBackend(w io.Writer) *Backend {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Backend{sl: slog.New(h)}
}

// Backend is a shared sink that subsystem loggers write through.
type Backend struct {
	sl *slog.Logger
}

// Logger returns a new subsystem logger, tagged with subsystem, that
// writes through b at LevelInfo until SetLevel is called.
func (b *Backend) Logger(subsystem string) Logger {
	return &slogLogger{subsystem: subsystem, level: LevelInfo, sl: b.sl}
}

func (l *slogLogger) log(lvl Level, msg string) {
	if lvl < l.level || l.level == LevelOff {
		return
	}
	if l.sl == nil {
		return
	}
	l.sl.Info(fmt.Sprintf("[%s %s] %s", lvl, l.subsystem, msg))
}

func (l *slogLogger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Infof(format string, args ...interface{})     { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Errorf(format string, args ...interface{})    { l.log(LevelError, fmt.Sprintf(format, args...)) }
func (l *slogLogger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, fmt.Sprintf(format, args...)) }

func (l *slogLogger) Trace(args ...interface{})    { l.log(LevelTrace, fmt.Sprint(args...)) }
func (l *slogLogger) Debug(args ...interface{})    { l.log(LevelDebug, fmt.Sprint(args...)) }
func (l *slogLogger) Info(args ...interface{})     { l.log(LevelInfo, fmt.Sprint(args...)) }
func (l *slogLogger) Warn(args ...interface{})     { l.log(LevelWarn, fmt.Sprint(args...)) }
func (l *slogLogger) Error(args ...interface{})    { l.log(LevelError, fmt.Sprint(args...)) }
func (l *slogLogger) Critical(args ...interface{}) { l.log(LevelCritical, fmt.Sprint(args...)) }

func (l *slogLogger) Level() Level         { return l.level }
func (l *slogLogger) SetLevel(level Level) { l.level = level }

// NewDefaultBackend is a convenience Backend writing to stderr.
func NewDefaultBackend() *Backend {
	return NewBackend(os.Stderr)
}
