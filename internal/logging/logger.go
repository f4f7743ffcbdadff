// Package logging provides leveled, named, structured logging for primeline.
//
// Initialize once at startup, then obtain named loggers per package:
//
//	logging.Initialize("info")
//	logger := logging.GetLogger("analysis.spectral")
//	logger.Info("resampled %d points", n)
//
// Structured fields are attached per call or persistently:
//
//	logger.InfoWithFields("artifact loaded",
//	    logging.Field("session", id),
//	    logging.Field("events", count),
//	)
//	sessionLogger := logger.WithField("session", id)
//
// Per-package levels can override the default, matched exactly or by a
// trailing wildcard ("analysis.*"):
//
//	logging.Initialize("info", map[string]string{"analysis.spectral": "debug"})
//
// Loggers are immutable; WithField, WithFields, WithName, and WithContext
// return copies, so instances are safe for concurrent use.
package logging

import (
	"context"
	"os"
)

// LogField is a single structured key/value pair attached to a log line.
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Logger writes leveled log lines under a component name.
type Logger struct {
	level  LogLevel
	name   string
	fields map[string]interface{}
	ctx    context.Context // optional, for trace/span ID extraction
}

var (
	globalLevel LogLevel = INFO
	// exitFunc is called by Fatal. Overridable in tests.
	exitFunc = os.Exit
)

// Initialize sets the default level for all subsequently created loggers and,
// optionally, per-package overrides keyed by logger name or wildcard pattern.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}
	globalLevel = level

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger returns a logger bound to the given component name at the
// current default level. INFO applies when Initialize was never called.
func GetLogger(name string) *Logger {
	return &Logger{
		level:  globalLevel,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// shouldLog reports whether a message at level passes this logger's
// effective threshold, honoring per-package overrides.
func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Debug logs a formatted debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

// Info logs a formatted info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

// Warn logs a formatted warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

// Error logs a formatted error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// Fatal logs a formatted fatal message and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(FATAL, msg, args...)
		exitFunc(1)
	}
}

// DebugWithFields logs a debug message with structured fields.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logFields(DEBUG, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logFields(INFO, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logFields(WARN, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logFields(ERROR, msg, fields...)
	}
}

// FatalWithFields logs a fatal message with structured fields and exits
// with code 1.
func (l *Logger) FatalWithFields(msg string, fields ...LogField) {
	if l.shouldLog(FATAL) {
		l.logFields(FATAL, msg, fields...)
		exitFunc(1)
	}
}

// ErrorWithErr logs a formatted error message with the error appended.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		args = append(args, err)
		l.logf(ERROR, msg+" - %v", args...)
	}
}

// WithName returns a copy of the logger bound to a different name.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: make(map[string]interface{}),
		ctx:    l.ctx,
	}
}

// WithField returns a copy of the logger with one persistent field added.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	clone := l.clone()
	clone.fields[key] = value
	return clone
}

// WithFields returns a copy of the logger with persistent fields added.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	clone := l.clone()
	for _, f := range fields {
		clone.fields[f.Key] = f.Value
	}
	return clone
}

// WithContext returns a copy of the logger that extracts trace_id and
// span_id from ctx into every line.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	clone := l.clone()
	clone.ctx = ctx
	return clone
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		level:  l.level,
		name:   l.name,
		fields: fields,
		ctx:    l.ctx,
	}
}
