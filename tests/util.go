package testutil

import (
	"io"
	"log"
	"sync"
	"testing"

	"github.com/trezcool/schoolbus/core"
	logsvc "github.com/trezcool/schoolbus/services/logger"
)

// NewLogger returns a logger writing nowhere, with rollbar disabled.
func NewLogger(t *testing.T) core.Logger {
	t.Helper()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

// LogEntry is one call recorded by a RecordingLogger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// RecordingLogger keeps every log call for assertions.
type RecordingLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Levels returns the level of every entry, in order.
func (l *RecordingLogger) Levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	levels := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		levels[i] = e.Level
	}
	return levels
}

func (l *RecordingLogger) Debug(msg string, args ...interface{}) { l.record("debug", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...interface{})  { l.record("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...interface{})  { l.record("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...interface{}) { l.record("error", msg, args) }
func (l *RecordingLogger) Fatal(msg string, args ...interface{}) { l.record("fatal", msg, args) }
