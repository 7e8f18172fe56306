// Package logging provides simple leveled logging for the inference server
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps stdlib log with level support. Several Loggers can share
// one underlying writer/level pair via WithComponent, each tagging its
// lines with a different component name.
type Logger struct {
	core      *core
	component string
}

type core struct {
	logger *log.Logger
	level  LogLevel
	base   io.Writer
	sink   io.Writer
	mu     sync.Mutex
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		core: &core{
			logger: log.New(output, "", log.LstdFlags),
			level:  config.Level,
			base:   output,
		},
	}
}

// WithComponent returns a Logger that tags every line with name, sharing
// this Logger's output, level, and attached sink.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{core: l.core, component: name}
}

// AttachSink routes a copy of every logged line to w in addition to the
// configured Output, e.g. so a server can forward its own log lines to
// a connected client over internal/logsink.Sink without losing the
// local Output stream. Safe to call from any Logger sharing this core.
func (l *Logger) AttachSink(w io.Writer) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.sink = w
	l.core.rebuild()
}

// DetachSink stops forwarding to a previously attached sink.
func (l *Logger) DetachSink() {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.sink = nil
	l.core.rebuild()
}

// rebuild must be called with core.mu held.
func (c *core) rebuild() {
	if c.sink != nil {
		c.logger.SetOutput(io.MultiWriter(c.base, c.sink))
	} else {
		c.logger.SetOutput(c.base)
	}
}

// Default returns the default logger, creating it if necessary
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// formatArgs converts key-value pairs to a string
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.core.level {
		return
	}
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	if l.component != "" {
		l.core.logger.Printf("%s [%s] %s%s", prefix, l.component, msg, formatArgs(args))
		return
	}
	l.core.logger.Printf("%s %s%s", prefix, msg, formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "[INFO]", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN]", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR]", msg, args...)
}

// Printf-style logging
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf for compatibility
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
