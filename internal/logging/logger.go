// Package logging provides the structured logger used across mcvmd and the
// resolver CLI: JSON output, context-carried correlation ids, and
// OpenTelemetry trace/span enrichment.
package logging

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the logging contract used by every package component; callers
// never reach for logrus directly so the field shape stays consistent.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	WithError(err error) Logger
}

// Field is one structured log field.
type Field struct {
	Key   string
	Value interface{}
}

// StructuredLogger is the Logger implementation backed by logrus's JSON
// formatter.
type StructuredLogger struct {
	logger     *logrus.Logger
	baseFields map[string]interface{}
	component  string
}

// NewLogger builds a component-scoped logger. Level is taken from LOG_LEVEL
// (debug/info/warn/error), defaulting to info.
func NewLogger(component string) Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return &StructuredLogger{logger: logger, baseFields: map[string]interface{}{}, component: component}
}

func (l *StructuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, logrus.DebugLevel, msg, fields...)
}

func (l *StructuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, logrus.InfoLevel, msg, fields...)
}

func (l *StructuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, logrus.WarnLevel, msg, fields...)
}

func (l *StructuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, logrus.ErrorLevel, msg, fields...)
}

func (l *StructuredLogger) WithFields(fields ...Field) Logger {
	next := &StructuredLogger{logger: l.logger, component: l.component, baseFields: map[string]interface{}{}}
	for k, v := range l.baseFields {
		next.baseFields[k] = v
	}
	for _, f := range fields {
		next.baseFields[f.Key] = f.Value
	}
	return next
}

func (l *StructuredLogger) WithError(err error) Logger {
	return l.WithFields(Field{Key: "error", Value: err.Error()})
}

func (l *StructuredLogger) log(ctx context.Context, level logrus.Level, msg string, fields ...Field) {
	entry := l.logger.WithFields(logrus.Fields{})
	if l.component != "" {
		entry = entry.WithField("component", l.component)
	}
	if runID := GetRunID(ctx); runID != "" {
		entry = entry.WithField("run_id", runID)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithField("trace_id", span.SpanContext().TraceID().String())
		entry = entry.WithField("span_id", span.SpanContext().SpanID().String())
	}

	if pc, file, line, ok := runtime.Caller(2); ok {
		entry = entry.WithField("file", file)
		entry = entry.WithField("line", line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			entry = entry.WithField("function", fn.Name())
		}
	}

	for k, v := range l.baseFields {
		entry = entry.WithField(k, v)
	}
	for _, f := range fields {
		entry = entry.WithField(f.Key, f.Value)
	}
	entry.Log(level, msg)
}

func String(key, value string) Field           { return Field{Key: key, Value: value} }
func Int(key string, value int) Field          { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }
func Err(err error) Field                     { return Field{Key: "error", Value: err.Error()} }

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID attaches the resolve-run id that a Resolve call was given, so
// every log line emitted during that run can be grepped together.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRunID generates a new resolve-run id for contexts that don't already
// carry one (e.g. a CLI invocation rather than a server request).
func NewRunID() string {
	return uuid.New().String()
}
