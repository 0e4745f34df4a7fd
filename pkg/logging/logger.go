package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogLevel represents logging severity
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Component names one of the host/viewer process's moving parts. A
// logger is always scoped to exactly one, so a deployment's combined
// log stream can be split or filtered by component without parsing
// messages.
type Component string

const (
	ComponentHost          Component = "host"
	ComponentViewer        Component = "viewer"
	ComponentSession       Component = "session"
	ComponentPipeline      Component = "pipeline"
	ComponentRegistry      Component = "registry"
	ComponentQuality       Component = "quality"
	ComponentCryptoChannel Component = "cryptochannel"
	ComponentAuth          Component = "auth"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// sensitiveFieldKeys names Fields keys whose values must never reach
// a log line unredacted: access codes and session tokens are bearer
// credentials for the duration of a connection, and a leaked log file
// (shipped to a ticket, grepped over SSH) would otherwise hand out a
// live session.
var sensitiveFieldKeys = map[string]bool{
	"access_code":   true,
	"code":          true,
	"session_token": true,
}

const redactedPlaceholder = "[redacted]"

// LogEntry represents a single structured log entry
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Caller     string                 `json:"caller,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	Component  string                 `json:"component,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
}

// Logger is a structured logger with JSON output and size-based
// rotation, scoped to one Component.
type Logger struct {
	mu          sync.RWMutex
	output      io.Writer
	level       LogLevel
	fields      Fields
	logFile     *os.File
	logPath     string
	maxFileSize int64
	maxBackups  int
	component   Component
}

// defaultMaxFileSizeMB and defaultMaxBackups apply when a caller uses
// NewLogger directly instead of NewLoggerFromConfig.
const (
	defaultMaxFileSizeMB = 100
	defaultMaxBackups    = 10
)

// NewLogger creates a logger for component writing to logPath (stdout
// if empty), using the package's default rotation policy. Processes
// that already hold a config.LoggingConfig should use
// NewLoggerFromConfig instead so rotation follows the operator's
// configured limits.
func NewLogger(component Component, level LogLevel, logPath string) (*Logger, error) {
	return newLogger(component, level, logPath, defaultMaxFileSizeMB, defaultMaxBackups)
}

// NewLoggerFromConfig creates a logger whose rotation policy is driven
// by the process's LoggingConfig (maxSizeMB/maxBackups), rather than
// this package's hardcoded defaults.
func NewLoggerFromConfig(component Component, level LogLevel, logPath string, maxSizeMB, maxBackups int) (*Logger, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxFileSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	return newLogger(component, level, logPath, maxSizeMB, maxBackups)
}

func newLogger(component Component, level LogLevel, logPath string, maxFileSizeMB, maxBackups int) (*Logger, error) {
	logger := &Logger{
		level:       level,
		fields:      make(Fields),
		component:   component,
		logPath:     logPath,
		maxFileSize: int64(maxFileSizeMB) * 1024 * 1024,
		maxBackups:  maxBackups,
	}

	if logPath != "" {
		dir := filepath.Dir(logPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		logger.logFile = file
		logger.output = file
	} else {
		logger.output = os.Stdout
	}

	return logger, nil
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// WithField adds a field to the logger's global context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields[key] = value
	return l
}

// WithFields adds multiple fields to the logger's global context
func (l *Logger) WithFields(fields Fields) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithSessionID returns a copy-on-write logger scoped to one session,
// so every entry it emits carries session_id without callers repeating
// it in every Fields literal.
func (l *Logger) WithSessionID(sessionID string) *Logger {
	l.mu.RLock()
	clone := &Logger{
		output:      l.output,
		level:       l.level,
		logFile:     l.logFile,
		logPath:     l.logPath,
		maxFileSize: l.maxFileSize,
		maxBackups:  l.maxBackups,
		component:   l.component,
		fields:      make(Fields, len(l.fields)+1),
	}
	for k, v := range l.fields {
		clone.fields[k] = v
	}
	l.mu.RUnlock()
	clone.fields["session_id"] = sessionID
	return clone
}

func redactFields(fields map[string]interface{}) map[string]interface{} {
	for k := range fields {
		if sensitiveFieldKeys[k] {
			fields[k] = redactedPlaceholder
		}
	}
	return fields
}

// log writes a structured log entry
func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	l.mu.RLock()
	currentLevel := l.level
	output := l.output
	globalFields := l.fields
	component := l.component
	l.mu.RUnlock()

	if level < currentLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Fields:    make(map[string]interface{}),
		Component: string(component),
	}

	for k, v := range globalFields {
		entry.Fields[k] = v
	}
	for k, v := range fields {
		entry.Fields[k] = v
	}
	if sessionID, ok := entry.Fields["session_id"].(string); ok {
		entry.SessionID = sessionID
		delete(entry.Fields, "session_id")
	}
	entry.Fields = redactFields(entry.Fields)

	if _, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	if level >= ERROR {
		entry.StackTrace = getStackTrace(3)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(output, "ERROR: failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintf(output, "%s\n", data)

	l.rotateIfNeeded()

	if level == FATAL {
		l.Close()
		os.Exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(DEBUG, msg, firstOrNil(fields))
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(INFO, msg, firstOrNil(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(WARN, msg, firstOrNil(fields))
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(ERROR, msg, firstOrNil(fields))
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.log(FATAL, msg, firstOrNil(fields))
}

func firstOrNil(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(FATAL, fmt.Sprintf(format, args...), nil)
}

// rotateIfNeeded checks if log rotation is needed and performs it
func (l *Logger) rotateIfNeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil || l.logPath == "" {
		return
	}

	info, err := l.logFile.Stat()
	if err != nil {
		return
	}
	if info.Size() < l.maxFileSize {
		return
	}

	l.logFile.Close()

	for i := l.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", l.logPath, i)
		newPath := fmt.Sprintf("%s.%d", l.logPath, i+1)
		os.Rename(oldPath, newPath)
	}
	os.Rename(l.logPath, fmt.Sprintf("%s.1", l.logPath))

	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.output = os.Stdout
		return
	}
	l.logFile = file
	l.output = file
}

// Close closes the logger and releases resources
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// SetMaxFileSize sets the maximum log file size before rotation
func (l *Logger) SetMaxFileSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxFileSize = size
}

// SetMaxBackups sets the maximum number of backup files to keep
func (l *Logger) SetMaxBackups(count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxBackups = count
}

// getStackTrace returns a stack trace as a string
func getStackTrace(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	trace := ""
	for {
		frame, more := frames.Next()
		trace += fmt.Sprintf("\n  %s:%d %s", filepath.Base(frame.File), frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return trace
}

// Global default logger instance
var defaultLogger *Logger
var once sync.Once

// InitDefaultLogger initializes the global default logger
func InitDefaultLogger(component Component, level LogLevel, logPath string) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(component, level, logPath)
	})
	return err
}

// GetDefaultLogger returns the global default logger
func GetDefaultLogger() *Logger {
	if defaultLogger == nil {
		defaultLogger, _ = NewLogger("default", INFO, "")
	}
	return defaultLogger
}

// Helper functions for global logger
func Debug(msg string, fields ...Fields) {
	GetDefaultLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...Fields) {
	GetDefaultLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...Fields) {
	GetDefaultLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...Fields) {
	GetDefaultLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...Fields) {
	GetDefaultLogger().Fatal(msg, fields...)
}

func Debugf(format string, args ...interface{}) {
	GetDefaultLogger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	GetDefaultLogger().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	GetDefaultLogger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	GetDefaultLogger().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	GetDefaultLogger().Fatalf(format, args...)
}
