// Package logging provides the structured logger shared by the broker,
// worker, and producer harnesses.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level selects logging verbosity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the wire shape of emitted log lines.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures a Logger.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	Component string
}

// Logger wraps a zerolog.Logger with the field/message signature the rest
// of this module's packages are written against.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from cfg. Output defaults to stdout; Format defaults
// to JSON unless Text is requested explicitly.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var w io.Writer = cfg.Output
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	zl := ctx.Logger().Level(levelOf(cfg.Level))

	return &Logger{zl: zl}
}

func levelOf(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.emit(l.zl.Error(), msg, fields) }
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.emit(l.zl.Fatal(), msg, fields) }

// With returns a child logger carrying one extra field on every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a child logger carrying several extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []interface{}) {
	if len(fields)%2 != 0 {
		event.Str("log_error", "odd number of field arguments").Msg(msg)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("log_error", fmt.Sprintf("non-string field key at index %d", i))
			continue
		}
		event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}

// Zerolog exposes the underlying zerolog.Logger for libraries that expect
// one directly (e.g. net/http middleware).
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// InitGlobal installs cfg as the package-level zerolog default, for code
// paths that log via zerolog/log before a component Logger is wired in
// (cobra's PersistentPreRunE, init-time diagnostics).
func InitGlobal(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	var w io.Writer = cfg.Output
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(levelOf(cfg.Level))
}
