// Package logger is a small leveled, component-tagged logger over the
// standard log package, used by every daemon component instead of bare
// fmt.Println so log lines carry a consistent timestamp/level/component
// prefix.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level is a logging severity.
type Level int

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

// Logger is a component-scoped log sink.
type Logger struct {
	component string
	level     Level
	out       *log.Logger
}

// New creates a logger tagged with component, filtering below levelStr
// (one of debug/info/warn/error/fatal, case-insensitive; defaults to
// info on an unrecognised string).
func New(component, levelStr string) *Logger {
	return &Logger{
		component: component,
		level:     parseLevel(levelStr),
		out:       log.New(os.Stdout, "", 0),
	}
}

// With returns a logger for a sub-component, e.g. logger.With("procmon").
func (l *Logger) With(subComponent string) *Logger {
	return &Logger{component: l.component + "." + subComponent, level: l.level, out: l.out}
}

func parseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l *Logger) format(level Level, msg string, fields ...any) string {
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	var b strings.Builder
	if len(fields) > 0 {
		b.WriteString(" |")
		for i := 0; i+1 < len(fields); i += 2 {
			fmt.Fprintf(&b, " %s=%v", fields[i], fields[i+1])
		}
	}
	return fmt.Sprintf("[%s] %-5s [%s] %s%s", ts, level, l.component, msg, b.String())
}

func (l *Logger) log(level Level, msg string, fields ...any) {
	if level >= l.level {
		l.out.Println(l.format(level, msg, fields...))
	}
}

func (l *Logger) Debug(msg string, fields ...any) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...any)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...any) { l.log(LevelError, msg, fields...) }

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string, fields ...any) {
	l.out.Println(l.format(LevelFatal, msg, fields...))
	os.Exit(1)
}

// Printf lets *Logger satisfy callers (e.g. database/sql drivers) that
// expect a *log.Logger-shaped Printf at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}
