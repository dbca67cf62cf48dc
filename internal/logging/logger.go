// Package logging provides structured, leveled logging for the
// simulator. Every protocol layer logs through a *Logger rather than
// writing to stdout directly, so log verbosity is driven by a single
// knob: the CLI's --debug=<0..4> flag.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel represents the logging verbosity, 1:1 with --debug=<0..4>.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// Logger provides structured logging to stdout/stderr and an optional
// log file.
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a new logger at the given level. If logFile is
// non-empty, every message at or above the logger's level is also
// written there.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error-level message.
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.write(fmt.Sprintf("ERROR: "+format, v...), true)
	}
}

// Info logs an info-level message.
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.write(fmt.Sprintf("INFO: "+format, v...), false)
	}
}

// Verbose logs a verbose-level message.
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.level >= LogLevelVerbose {
		l.write(fmt.Sprintf("VERBOSE: "+format, v...), false)
	}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.write(fmt.Sprintf("DEBUG: "+format, v...), false)
	}
}

func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	if isError {
		l.stderr.Println(msg)
	} else {
		l.stdout.Println(msg)
	}
}

// SetLevel changes the logging level at runtime.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogHex logs a labeled hex dump at debug level, space-separated every
// byte, for wire-level troubleshooting.
func (l *Logger) LogHex(label string, data []byte) {
	if l.level < LogLevelDebug {
		return
	}
	hexStr := fmt.Sprintf("%x", data)
	var formatted []byte
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			formatted = append(formatted, ' ')
		}
		end := i + 2
		if end > len(hexStr) {
			end = len(hexStr)
		}
		formatted = append(formatted, hexStr[i:end]...)
	}
	l.Debug("%s: %s", label, string(formatted))
}
