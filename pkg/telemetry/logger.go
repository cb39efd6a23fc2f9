package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with the fields kitinfo logs by.
type Logger struct {
	zlog zerolog.Logger
	file *os.File
}

type loggerContextKey struct{}

// NewLogger creates a logger with the given configuration.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}
	writer := cfg.Writer
	if writer == nil {
		switch cfg.Output {
		case "", "stderr":
			writer = os.Stderr
		case "stdout":
			writer = os.Stdout
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			writer, l.file = f, f
		}
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		}
	}

	l.zlog = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return l, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}

// Zerolog returns the underlying zerolog logger, for packages that take one.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// NewComponentLogger creates a child logger for a component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.with(l.zlog.With().Str("component", component))
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(l.zlog.With().Interface(key, value))
}

// WithSessionID adds a session_id field.
func (l *Logger) WithSessionID(id string) *Logger {
	return l.with(l.zlog.With().Str("session_id", id))
}

// WithError adds an error field.
func (l *Logger) WithError(err error) *Logger {
	return l.with(l.zlog.With().Err(err))
}

func (l *Logger) with(c zerolog.Context) *Logger {
	return &Logger{zlog: c.Logger(), file: l.file}
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return NewNopLogger()
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, args ...any) { l.zlog.Debug().Msgf(format, args...) }

// Info logs an info-level message.
func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, args ...any) { l.zlog.Info().Msgf(format, args...) }

// Warn logs a warning.
func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }

// Error logs an error-level message.
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// Writer returns an io.Writer logging each write at the given level.
func (l *Logger) Writer(level zerolog.Level) io.Writer {
	return levelWriter{zlog: l.zlog, level: level}
}

// Close closes the log file, if the logger writes to one.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

type levelWriter struct {
	zlog  zerolog.Logger
	level zerolog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	w.zlog.WithLevel(w.level).Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
