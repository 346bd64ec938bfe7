// Package logger wraps logrus behind a context-aware structured logging interface.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

type ctxKey struct{}

// WithCorrelationID stores id in ctx so log entries can carry it
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationID returns the ID stored by WithCorrelationID, if any
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Config configuration for the logger
type Config struct {
	Level       string
	Format      string
	ServiceName string
	Output      io.Writer
}

type structuredLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// New builds a logrus-backed Logger
func New(cfg Config) Logger {
	return &structuredLogger{
		logger: NewLogrus(cfg),
		fields: logrus.Fields{"service": cfg.ServiceName},
	}
}

// NewLogrus builds the underlying logrus logger, for components that take one directly
func NewLogrus(cfg Config) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	return l
}

// Nop discards everything
func Nop() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &structuredLogger{logger: l, fields: logrus.Fields{}}
}

func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Info(message)
}

func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.entry(ctx, err, fields).Error(message)
}

func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Warn(message)
}

func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Debug(message)
}

// WithFields returns a logger that adds fields to every entry
func (l *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &structuredLogger{logger: l.logger, fields: merged}
}

func (l *structuredLogger) entry(ctx context.Context, err error, fields map[string]interface{}) *logrus.Entry {
	all := make(logrus.Fields, len(l.fields)+len(fields)+2)
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	if id := CorrelationID(ctx); id != "" {
		all["correlation_id"] = id
	}
	if err != nil {
		all[logrus.ErrorKey] = err.Error()
	}
	return l.logger.WithFields(all)
}

// LogPerformance logs how long an operation took
func LogPerformance(ctx context.Context, logger Logger, operation string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()
	logger.Info(ctx, operation+" finished", fields)
}
