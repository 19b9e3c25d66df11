// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logger provides leveled, timestamped logging for the ACR transfer tool.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level controls which messages a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger defines the logging interface used throughout the application.
// Services accept this interface so serve mode can substitute a task-scoped
// logger that mirrors output into task logs.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// stdLogger writes timestamped lines to a single writer.
type stdLogger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// New creates a logger writing to stdout at Info level.
func New() Logger {
	return NewWithLevel(LevelInfo)
}

// NewWithLevel creates a stdout logger with the given minimum level.
func NewWithLevel(level Level) Logger {
	return &stdLogger{out: os.Stdout, level: level}
}

// NewWithWriter creates a logger with a custom writer, used in tests.
func NewWithWriter(w io.Writer, level Level) Logger {
	return &stdLogger{out: w, level: level}
}

func (l *stdLogger) log(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s %s\n", time.Now().Format("15:04:05"), tag, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, "DEBUG", format, args...)
}

func (l *stdLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, "INFO ", format, args...)
}

func (l *stdLogger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, "WARN ", format, args...)
}

func (l *stdLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, "ERROR", format, args...)
}
