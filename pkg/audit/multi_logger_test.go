package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/platinummonkey/workos-sso/pkg/contextkeys"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger records events for assertions
type mockLogger struct {
	mu     sync.Mutex
	events []*Event
	err    error
	closed bool
}

func (m *mockLogger) Log(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockLogger) Close() error {
	m.closed = true
	return m.err
}

func TestMultiLogger_FanOut(t *testing.T) {
	first := &mockLogger{}
	second := &mockLogger{}
	multi := NewMultiLogger(first, nil, second)

	event := &Event{EventType: EventTypeLoginInitiated}
	require.NoError(t, multi.Log(context.Background(), event))

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)

	require.NoError(t, multi.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestMultiLogger_ContinuesPastFailure(t *testing.T) {
	failing := &mockLogger{err: errors.New("disk full")}
	healthy := &mockLogger{}
	multi := NewMultiLogger(failing, healthy)

	err := multi.Log(context.Background(), &Event{EventType: EventTypeLoginError})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, healthy.events, 1)
}

func TestNewEvent(t *testing.T) {
	ctx := contextkeys.WithRequestID(context.Background(), "req-1")
	r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.Header.Set("User-Agent", "test-agent")

	event := NewEvent(ctx, r, EventTypeStateRejected, EventStatusDenied)

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "203.0.113.7", event.IPAddress)
	assert.Equal(t, "192.0.2.1", event.PeerAddress)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.Equal(t, http.MethodGet, event.Method)
	assert.Equal(t, "/auth/sso/callback", event.Path)
	assert.NotNil(t, event.Metadata)
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(observability.NewLogger(observability.InfoLevel, &buf))

	event := NewEvent(context.Background(), nil, EventTypeLoginFailed, EventStatusFailure)
	event.Message = "SSO login failed"
	event.ErrorMessage = "no user"
	require.NoError(t, logger.Log(context.Background(), event))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "SSO login failed", entry["msg"])
	assert.Equal(t, true, entry["audit"])
	assert.Equal(t, "sso.login_failed", entry["event_type"])
	assert.Equal(t, "no user", entry["error"])
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	assert.NoError(t, logger.Log(context.Background(), &Event{}))
	assert.NoError(t, logger.Close())
}
