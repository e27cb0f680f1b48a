package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonwraymond/airelay/apierr"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel parses a string log level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Record field names.
const (
	FieldTimestamp     = "timestamp"
	FieldLevel         = "level"
	FieldMessage       = "message"
	FieldService       = "service"
	FieldCorrelationID = "correlation_id"
	FieldContext       = "context"
	FieldError         = "error"
)

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err builds the error field of a record. A nil error yields a field that
// is skipped at emission.
func Err(err error) Field {
	return Field{Key: FieldError, Value: err}
}

// LoggerConfig configures a structured logger.
type LoggerConfig struct {
	// Level is the minimum level emitted. Default: info.
	Level string

	// Format is "json" or "console". Default: json.
	Format string

	// Service is stamped on every record.
	Service string

	// Writer is the sink. Default: os.Stderr.
	Writer io.Writer
}

// structuredLogger emits redacted JSON records through zerolog.
type structuredLogger struct {
	level         Level
	zl            zerolog.Logger
	service       string
	correlationID string
	base          []Field
}

// NewLogger creates a JSON logger on stderr with the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithConfig(LoggerConfig{Level: level})
}

// NewLoggerWithWriter creates a JSON logger with a custom sink.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewLoggerWithConfig(LoggerConfig{Level: level, Writer: w})
}

// NewLoggerWithConfig creates a logger from cfg.
func NewLoggerWithConfig(cfg LoggerConfig) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	w = zerolog.SyncWriter(w)
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	level := ParseLevel(cfg.Level)
	return &structuredLogger{
		level:   level,
		zl:      zerolog.New(w).Level(level.zerolog()),
		service: cfg.Service,
	}
}

// WithCorrelationID returns a child logger that stamps id on every record.
func (l *structuredLogger) WithCorrelationID(id string) Logger {
	child := *l
	child.correlationID = id
	return &child
}

// WithFields returns a child logger that adds fields to every record.
func (l *structuredLogger) WithFields(fields ...Field) Logger {
	child := *l
	child.base = make([]Field, 0, len(l.base)+len(fields))
	child.base = append(child.base, l.base...)
	child.base = append(child.base, fields...)
	return &child
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, LevelDebug, msg, fields...)
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, LevelInfo, msg, fields...)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, LevelWarn, msg, fields...)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, LevelError, msg, fields...)
}

// Fatal records at fatal level. It does not exit the process.
func (l *structuredLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, LevelFatal, msg, fields...)
}

// Log emits one record. Records below the configured level are dropped
// before any formatting work.
func (l *structuredLogger) Log(ctx context.Context, level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	// Logging failures must never reach the caller.
	defer func() { _ = recover() }()

	var logErr error
	attrs := make(map[string]any, len(l.base)+len(fields))
	for _, group := range [][]Field{l.base, fields} {
		for _, f := range group {
			if f.Key == FieldError {
				if f.Value == nil {
					continue
				}
				if err, ok := f.Value.(error); ok {
					logErr = err
					continue
				}
			}
			attrs[f.Key] = f.Value
		}
	}

	ev := l.zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	ev = ev.Time(FieldTimestamp, time.Now().UTC())
	if l.service != "" {
		ev = ev.Str(FieldService, l.service)
	}
	if cid := l.correlation(ctx); cid != "" {
		ev = ev.Str(FieldCorrelationID, cid)
	}
	if len(attrs) > 0 {
		ev = ev.Interface(FieldContext, Redact(attrs))
	}
	if logErr != nil {
		ev = ev.Interface(FieldError, errorRecord(logErr))
	}
	ev.Msg(msg)
}

func (l *structuredLogger) correlation(ctx context.Context) string {
	if l.correlationID != "" {
		return l.correlationID
	}
	return CorrelationIDFromContext(ctx)
}

// errorRecord renders err as the {name, message} object of a LogRecord.
func errorRecord(err error) map[string]any {
	rec := map[string]any{
		"name":    fmt.Sprintf("%T", err),
		"message": err.Error(),
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		rec["name"] = "apierr." + string(ae.Kind)
		rec["retryable"] = ae.Retryable()
		if ae.StatusCode != 0 {
			rec["status_code"] = ae.StatusCode
		}
	}
	return rec
}

// nopLogger discards everything.
type nopLogger struct{}

// NopLogger returns a logger that discards all records.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Log(context.Context, Level, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field)      {}
func (nopLogger) Info(context.Context, string, ...Field)       {}
func (nopLogger) Warn(context.Context, string, ...Field)       {}
func (nopLogger) Error(context.Context, string, ...Field)      {}
func (nopLogger) Fatal(context.Context, string, ...Field)      {}
func (n nopLogger) WithCorrelationID(string) Logger            { return n }
func (n nopLogger) WithFields(...Field) Logger                 { return n }

var (
	_ Logger = (*structuredLogger)(nil)
	_ Logger = nopLogger{}
)
