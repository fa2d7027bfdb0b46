package logging

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockOutput struct {
	entries []LogEntry
	mu      sync.Mutex
	closed  bool
}

func NewMockOutput() *MockOutput {
	return &MockOutput{
		entries: make([]LogEntry, 0),
	}
}

func (m *MockOutput) Write(entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("output is closed")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutput) Sync() error {
	return nil
}

func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockOutput) GetEntries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries
}

func TestNewLogger(t *testing.T) {
	mockOutput := NewMockOutput()
	defaultFields := map[string]interface{}{
		"service": "test",
		"version": "1.0",
	}

	cfg := Config{
		Severity:      INFO,
		Outputs:       []Output{mockOutput},
		DefaultFields: defaultFields,
	}

	logger := NewLogger(cfg)

	assert.Equal(t, INFO, logger.severity)
	assert.Len(t, logger.outputs, 1)
	assert.Equal(t, defaultFields, logger.fields)
}

func TestSeverityFiltering(t *testing.T) {
	mockOutput := NewMockOutput()
	logger := NewLogger(Config{
		Severity: WARN,
		Outputs:  []Output{mockOutput},
	})

	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	entries := mockOutput.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestDefaultFields(t *testing.T) {
	mockOutput := NewMockOutput()
	logger := NewLogger(Config{
		Severity: INFO,
		Outputs:  []Output{mockOutput},
		DefaultFields: map[string]interface{}{
			"component": "ace",
		},
	})

	logger.Info(context.Background(), "hello")

	entries := mockOutput.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ace", entries[0].Fields["component"])
}

func TestDecisionLogging(t *testing.T) {
	mockOutput := NewMockOutput()
	logger := NewLogger(Config{
		Severity: INFO,
		Outputs:  []Output{mockOutput},
	})

	ctx := WithDecisionID(context.Background(), "dec-42")
	logger.Decision(ctx, "git:push:remote", "deliberate", 0.55, "deliberate-minimum class")

	entries := mockOutput.GetEntries()
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "dec-42", entry.DecisionID)
	assert.Equal(t, "git:push:remote", entry.ActionClass)
	assert.Equal(t, "deliberate", entry.Tier)
	assert.InDelta(t, 0.55, entry.Composite, 0.001)
	assert.Contains(t, entry.Message, "deliberate-minimum class")
}

func TestNilContextLogging(t *testing.T) {
	mockOutput := NewMockOutput()
	logger := NewLogger(Config{
		Severity: INFO,
		Outputs:  []Output{mockOutput},
	})

	// A nil context must not panic and simply produces no decision fields.
	logger.Info(nil, "no context") //nolint:staticcheck

	entries := mockOutput.GetEntries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].DecisionID)
}

func TestGlobalLogger(t *testing.T) {
	custom := NewLogger(Config{
		Severity: DEBUG,
		Outputs:  []Output{NewMockOutput()},
	})
	SetLogger(custom)
	assert.Same(t, custom, GetLogger())

	// Reset so other tests see the default logger behavior.
	SetLogger(nil)
	assert.NotNil(t, GetLogger())
}

func TestConcurrentLogging(t *testing.T) {
	mockOutput := NewMockOutput()
	logger := NewLogger(Config{
		Severity: INFO,
		Outputs:  []Output{mockOutput},
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info(context.Background(), "message %d", n)
		}(i)
	}
	wg.Wait()

	assert.Len(t, mockOutput.GetEntries(), 20)
}
