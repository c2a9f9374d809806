// Package realtime broadcasts site/incident state changes to open status
// pages over WebSocket, a live push layered on top of the rendered HTML
// status page.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a real-time event broadcast to subscribers.
type Event struct {
	// Type is the event type (site_status, incident_opened, monitoring_down, etc.)
	Type string `json:"type"`

	// ID is a unique event ID (UUID)
	ID string `json:"id"`

	// Data is the event payload (varies by event type)
	Data map[string]interface{} `json:"data"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Source is the event source (site_manager or incident_manager)
	Source string `json:"source"`

	// Sequence is a sequence number for event ordering (monotonically increasing)
	Sequence int64 `json:"sequence"`
}

// EventType constants for status-page events.
const (
	EventTypeSiteStatus       = "site_status"
	EventTypeIncidentOpened   = "incident_opened"
	EventTypeIncidentUpdated  = "incident_updated"
	EventTypeIncidentResolved = "incident_resolved"
	EventTypeMonitoringDown   = "monitoring_down"
	EventTypeMonitoringUp     = "monitoring_up"
)

// EventSource constants.
const (
	EventSourceSiteManager     = "site_manager"
	EventSourceIncidentManager = "incident_manager"
)

// NewEvent creates a new Event with the given type, data, and source.
func NewEvent(eventType string, data map[string]interface{}, source string) *Event {
	return &Event{
		Type:      eventType,
		ID:        generateEventID(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Sequence:  0, // Will be set by EventBus
	}
}

// generateEventID generates a unique event ID (UUID).
func generateEventID() string {
	return uuid.New().String()
}
