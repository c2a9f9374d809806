// Package realtime provides real-time event broadcasting system for dashboard updates.
package realtime

import (
	"log/slog"

	"github.com/evilham/prometheus-adlermanager/internal/severity"
)

// EventPublisher publishes site/incident state changes to the EventBus.
type EventPublisher struct {
	eventBus *DefaultEventBus
	logger   *slog.Logger
	metrics  *RealtimeMetrics
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(eventBus *DefaultEventBus, logger *slog.Logger, metrics *RealtimeMetrics) *EventPublisher {
	return &EventPublisher{
		eventBus: eventBus,
		logger:   logger.With("component", "event_publisher"),
		metrics:  metrics,
	}
}

// PublishSiteStatus publishes a site's recomputed overall status, broadcast
// scoped to that site's open pages.
func (p *EventPublisher) PublishSiteStatus(site string, status severity.Severity) error {
	if p.eventBus == nil {
		return nil
	}
	data := map[string]interface{}{
		"site":   site,
		"status": status.String(),
	}
	event := NewEvent(EventTypeSiteStatus, data, EventSourceSiteManager)
	return p.eventBus.Publish(*event)
}

// PublishIncidentEvent publishes an incident lifecycle transition
// (incident_opened/updated/resolved) for site/service.
func (p *EventPublisher) PublishIncidentEvent(eventType, site, service, incidentID string, status severity.Severity) error {
	if p.eventBus == nil {
		return nil
	}
	data := map[string]interface{}{
		"site":        site,
		"service":     service,
		"incident_id": incidentID,
		"status":      status.String(),
	}
	event := NewEvent(eventType, data, EventSourceIncidentManager)
	return p.eventBus.Publish(*event)
}

// PublishMonitoringDown publishes the site's watchdog tripping.
func (p *EventPublisher) PublishMonitoringDown(site string) error {
	if p.eventBus == nil {
		return nil
	}
	event := NewEvent(EventTypeMonitoringDown, map[string]interface{}{"site": site}, EventSourceSiteManager)
	return p.eventBus.Publish(*event)
}

// PublishMonitoringUp publishes the site's watchdog clearing on fresh ingress.
func (p *EventPublisher) PublishMonitoringUp(site string) error {
	if p.eventBus == nil {
		return nil
	}
	event := NewEvent(EventTypeMonitoringUp, map[string]interface{}{"site": site}, EventSourceSiteManager)
	return p.eventBus.Publish(*event)
}
