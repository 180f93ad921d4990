package debug

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// TestLogger buffers entries and writes them to the test log only when the test fails.
type TestLogger struct {
	t       testing.TB
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level   string
	message string
	args    []interface{}
	at      time.Time
}

var _ Logger = (*TestLogger)(nil)

// NewTestLogger creates a logger bound to t.
func NewTestLogger(t testing.TB) *TestLogger {
	l := &TestLogger{t: t}
	t.Cleanup(l.flushIfFailed)
	return l
}

func (l *TestLogger) Debug(msg string, args ...interface{}) { l.add("DEBUG", msg, args) }
func (l *TestLogger) Info(msg string, args ...interface{})  { l.add("INFO", msg, args) }
func (l *TestLogger) Warn(msg string, args ...interface{})  { l.add("WARN", msg, args) }
func (l *TestLogger) Error(msg string, args ...interface{}) { l.add("ERROR", msg, args) }

func (l *TestLogger) add(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: msg, args: args, at: time.Now()})
}

// Messages returns the buffered messages of the given level ("" for all).
func (l *TestLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if level == "" || e.level == level {
			out = append(out, e.message)
		}
	}
	return out
}

func (l *TestLogger) flushIfFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.t.Failed() {
		l.t.Log("=== buffered logs ===")
		for _, e := range l.entries {
			l.t.Log(formatEntry(e))
		}
	}
	l.entries = l.entries[:0]
}

func formatEntry(e logEntry) string {
	msg := fmt.Sprintf("[%s] [%s] %s", e.at.Format("15:04:05.000"), e.level, e.message)
	var parts []string
	for i := 0; i < len(e.args); i += 2 {
		if i+1 < len(e.args) {
			parts = append(parts, fmt.Sprintf("%v=%v", e.args[i], e.args[i+1]))
		} else {
			parts = append(parts, fmt.Sprint(e.args[i]))
		}
	}
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, " ")
	}
	return msg
}
