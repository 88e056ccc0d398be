package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/workos-sso/pkg/contextkeys"
	"github.com/platinummonkey/workos-sso/pkg/httputil"
	"github.com/platinummonkey/workos-sso/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// NewEvent creates an event with the request context of r populated.
// r may be nil.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if r != nil {
		event.IPAddress = httputil.ClientIP(r, true)
		if peer := httputil.ClientIP(r, false); peer != event.IPAddress {
			event.PeerAddress = peer
		}
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}

	return event
}


// NopLogger returns a logger that discards every event
func NopLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (noOpLogger) Close() error { return nil }

// StructuredLogger writes audit events to the application log
type StructuredLogger struct {
	logger *observability.Logger
}

// NewStructuredLogger creates an audit logger backed by logger
func NewStructuredLogger(logger *observability.Logger) *StructuredLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &StructuredLogger{logger: logger.WithField("audit", true)}
}

// Log writes the event at info level, or warn when it did not succeed
func (l *StructuredLogger) Log(ctx context.Context, event *Event) error {
	entry := l.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
		"request_id": event.RequestID,
		"ip_address": event.IPAddress,
	})
	if event.ProfileID != "" {
		entry = entry.WithField("profile_id", event.ProfileID)
	}
	if event.ErrorMessage != "" {
		entry = entry.WithField("error", event.ErrorMessage)
	}

	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close is a no-op
func (l *StructuredLogger) Close() error {
	return nil
}
