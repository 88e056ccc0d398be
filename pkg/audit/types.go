package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeLoginInitiated EventType = "sso.login_initiated"
	EventTypeLoginSucceeded EventType = "sso.login_succeeded"
	EventTypeLoginFailed    EventType = "sso.login_failed"
	EventTypeLoginError     EventType = "sso.login_error"
	EventTypeStateRejected  EventType = "sso.state_rejected"
	EventTypeBrokerDenied   EventType = "sso.broker_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
	EventStatusError   EventStatus = "error"
)

// Event represents a single audit log entry
type Event struct {
	// Core fields
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Identity, set once the broker returned a profile
	ProfileID      string `json:"profile_id,omitempty"`
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	ConnectionID   string `json:"connection_id,omitempty"`

	// Request context. IPAddress is the client as reported by proxy headers;
	// PeerAddress is the socket peer, set only when the two differ.
	IPAddress   string `json:"ip_address,omitempty"`
	PeerAddress string `json:"peer_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Method      string `json:"method,omitempty"`
	Path        string `json:"path,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
