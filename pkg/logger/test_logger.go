package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures log messages so tests can assert on them
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
	zerolog  *zerolog.Logger
	fields   map[string]interface{}
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	nopLogger := zerolog.Nop()
	return &TestLogger{
		messages: make([]LogMessage, 0),
		zerolog:  &nopLogger,
		fields:   make(map[string]interface{}),
	}
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: merged})
}

func (l *TestLogger) Debug(msg string) { l.log("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

// WithField returns a logger that stamps the field on every captured message.
// Captured messages stay on the parent so tests can inspect them in one place.
func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &testChildLogger{parent: l, fields: merged}
}

func (l *TestLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return l.zerolog
}

// Messages returns a copy of all captured messages
func (l *TestLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// MessagesAtLevel returns captured messages for one level
func (l *TestLogger) MessagesAtLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.Messages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether any message contains the given substring
func (l *TestLogger) HasMessage(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// testChildLogger forwards to the parent so captured messages stay in one place
type testChildLogger struct {
	parent *TestLogger
	fields map[string]interface{}
}

func (c *testChildLogger) Debug(msg string) { c.parent.log("DEBUG", msg, c.fields) }
func (c *testChildLogger) Info(msg string)  { c.parent.log("INFO", msg, c.fields) }
func (c *testChildLogger) Warn(msg string)  { c.parent.log("WARN", msg, c.fields) }
func (c *testChildLogger) Error(msg string) { c.parent.log("ERROR", msg, c.fields) }
func (c *testChildLogger) Fatal(msg string) { c.parent.log("FATAL", msg, c.fields) }

func (c *testChildLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	c.parent.log("DEBUG", msg, c.merge(fields))
}

func (c *testChildLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	c.parent.log("INFO", msg, c.merge(fields))
}

func (c *testChildLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	c.parent.log("WARN", msg, c.merge(fields))
}

func (c *testChildLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	c.parent.log("ERROR", msg, c.merge(fields))
}

func (c *testChildLogger) WithField(key string, value interface{}) Logger {
	return &testChildLogger{parent: c.parent, fields: c.merge(map[string]interface{}{key: value})}
}

func (c *testChildLogger) WithFields(fields map[string]interface{}) Logger {
	return &testChildLogger{parent: c.parent, fields: c.merge(fields)}
}

func (c *testChildLogger) WithError(err error) Logger {
	if err == nil {
		return c
	}
	return c.WithField("error", fmt.Sprintf("%v", err))
}

func (c *testChildLogger) GetZerolog() *zerolog.Logger {
	return c.parent.zerolog
}

func (c *testChildLogger) merge(fields map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
