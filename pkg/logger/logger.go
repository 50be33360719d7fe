package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines structured logging interface.
// Args are alternating key/value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	With(args ...any) Logger
}

// ZerologLogger implements Logger on top of zerolog
type ZerologLogger struct {
	logger zerolog.Logger
}

// New creates a new structured logger with the specified level.
// format "console" switches to human readable output.
func New(level, format string) Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level, format string) Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{logger: zl}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Info logs an informational message
func (l *ZerologLogger) Info(msg string, args ...any) {
	l.logger.Info().Fields(normalize(args)).Msg(msg)
}

// Error logs an error message
func (l *ZerologLogger) Error(msg string, args ...any) {
	l.logger.Error().Fields(normalize(args)).Msg(msg)
}

// Warn logs a warning message
func (l *ZerologLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(normalize(args)).Msg(msg)
}

// Debug logs a debug message
func (l *ZerologLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(normalize(args)).Msg(msg)
}

// With returns a new logger with the specified attributes
func (l *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{logger: l.logger.With().Fields(normalize(args)).Logger()}
}

// normalize turns key/value args into the slice form accepted by zerolog.
// A dangling key gets the value "!MISSING", error values are rendered as strings.
func normalize(args []any) []any {
	if len(args)%2 != 0 {
		args = append(args, "!MISSING")
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		val := args[i+1]
		if err, ok := val.(error); ok && err != nil {
			val = err.Error()
		}
		out = append(out, key, val)
	}
	return out
}

// Default returns a default logger instance
func Default() Logger {
	return New("info", "json")
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &ZerologLogger{logger: zerolog.Nop()}
}
