package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/smcreds/internal/logging"
)

// TestLogger is a logging.Logger whose output is captured in memory, so
// tests can check that expected messages appear and secrets do not.
//
//	logger := NewTestLogger(t)
//	logger.Info("fetched %s", logging.Secret("hunter2"))
//	logger.AssertContains(t, "[REDACTED]")
//	logger.AssertNotContains(t, "hunter2")
type TestLogger struct {
	*logging.Logger
	buffer *syncBuffer
}

// NewTestLogger creates a TestLogger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a TestLogger, optionally capturing Debug
// messages as well.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(buf, debug, true),
		buffer: buf,
	}
}

// GetOutput returns everything logged so far.
func (l *TestLogger) GetOutput() string {
	return l.buffer.String()
}

// Clear discards captured output.
func (l *TestLogger) Clear() {
	l.buffer.Reset()
}

// Lines returns captured output split into non-empty lines.
func (l *TestLogger) Lines() []string {
	var lines []string
	for _, line := range strings.Split(l.GetOutput(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// AssertContains fails the test if substr was not logged.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr)
}

// AssertNotContains fails the test if substr was logged.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr)
}

// AssertRedacted fails the test if secretValue appears in the output.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	if secretValue == "" {
		return
	}
	assert.NotContains(t, l.GetOutput(), secretValue, "secret value leaked into logs")
}

// AssertEmpty fails the test if anything was logged.
func (l *TestLogger) AssertEmpty(t *testing.T) {
	t.Helper()
	assert.Empty(t, l.GetOutput())
}

// syncBuffer guards reads of captured output against concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
