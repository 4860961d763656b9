// Package logging provides the leveled, structured logger used across the
// judge binaries.
//
// Initialize once at startup, then take named loggers per component:
//
//	logging.Initialize("info", map[string]string{"judge.*": "debug"})
//	logger := logging.GetLogger("judge.pipeline")
//	logger.InfoWithFields("run finished",
//	    logging.Field("run_id", runID),
//	    logging.Field("silent", true),
//	)
//
// Loggers are immutable: WithField, WithFields and WithContext return copies,
// so a logger may be shared between goroutines.
//
// Context values set through ContextWithRunID, ContextWithTrace are appended
// to every line emitted by a logger built with WithContext.
//
// Set LOG_TIMESTAMP to pin the timestamp in tests.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *Logger
	initOnce     sync.Once
	// exitFunc terminates the process on Fatal; swapped in tests.
	exitFunc = os.Exit
)

// Initialize sets the default level and optional per-package overrides.
// Unknown default levels fall back to INFO.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  "judge",
	}

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}
	return nil
}

// GetLogger returns a logger with the specified name.
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: map[string]interface{}{},
	}
}

// Level reports the level configured for the named package, honoring
// overrides. Useful to skip expensive debug formatting.
func (l *Logger) Level() LogLevel {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return pkgLevel
	}
	return l.level
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.Level()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(levelDebug, msg, args...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(levelInfo, msg, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(levelWarn, msg, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(levelError, msg, args...)
	}
}

// Fatal logs and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(levelFatal, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs msg followed by err.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		args = append(args, err)
		l.logf(levelError, msg+" - %v", args...)
	}
}

// WithName returns a copy of the logger under another name.
func (l *Logger) WithName(name string) *Logger {
	c := l.clone()
	c.name = name
	return c
}

// WithField returns a copy of the logger carrying key=value on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	c := l.clone()
	c.fields[key] = value
	return c
}

// WithFields returns a copy of the logger carrying all fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	c := l.clone()
	for _, f := range fields {
		c.fields[f.Key] = f.Value
	}
	return c
}

// WithContext returns a copy of the logger that reads run and trace ids
// from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	c := l.clone()
	c.ctx = ctx
	return c
}

// DebugWithFields logs a debug message with structured fields
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.writeLog(levelDebug, msg, l.merge(fields))
	}
}

// InfoWithFields logs an info message with structured fields
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.writeLog(levelInfo, msg, l.merge(fields))
	}
}

// WarnWithFields logs a warning message with structured fields
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.writeLog(levelWarn, msg, l.merge(fields))
	}
}

// ErrorWithFields logs an error message with structured fields
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.writeLog(levelError, msg, l.merge(fields))
	}
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{level: l.level, name: l.name, fields: fields, ctx: l.ctx}
}

// merge combines context fields, persistent fields and call fields, in that
// order of increasing priority.
func (l *Logger) merge(fields []LogField) map[string]interface{} {
	ctxFields := extractContextFields(l.ctx)
	if len(ctxFields) == 0 && len(l.fields) == 0 && len(fields) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(ctxFields)+len(l.fields)+len(fields))
	for k, v := range ctxFields {
		out[k] = v
	}
	for k, v := range l.fields {
		out[k] = v
	}
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

func normalizeLevelName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
