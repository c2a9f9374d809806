// Package alertmodel parses and normalizes inbound AlertManager-compatible
// alert payloads into the immutable Alert record the rest of the core
// operates on.
package alertmodel

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evilham/prometheus-adlermanager/internal/severity"
)

var validate = validator.New()

// Required labels for a site-bound alert.
const (
	LabelSite      = "adlermanager"
	LabelService   = "service"
	LabelComponent = "component"
	LabelSeverity  = "severity"
	LabelHeartbeat = "heartbeat"
)

// Alert is an immutable, normalized entry from an upstream monitoring
// notification. Labels and Annotations are treated as free-form string maps;
// validation of required keys happens at ingress, not in this type.
type Alert struct {
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Status      severity.Severity
}

// Label returns labels[key], and whether it was present.
func (a Alert) Label(key string) (string, bool) {
	v, ok := a.Labels[key]
	return v, ok
}

// Site returns the adlermanager label (the site this alert targets).
func (a Alert) Site() string { return a.Labels[LabelSite] }

// Service returns the service label.
func (a Alert) Service() string { return a.Labels[LabelService] }

// Component returns the component label.
func (a Alert) Component() string { return a.Labels[LabelComponent] }

// IsHeartbeat reports whether this alert carries a truthy heartbeat label.
func (a Alert) IsHeartbeat() bool {
	return isTruthy(a.Labels[LabelHeartbeat])
}

// HasRequiredLabels reports whether the alert carries the three labels a
// site-bound alert requires: adlermanager, service and
// component, all non-empty.
func (a Alert) HasRequiredLabels() bool {
	return a.Labels[LabelSite] != "" && a.Labels[LabelService] != "" && a.Labels[LabelComponent] != ""
}

// Raw is the wire shape of one inbound alert, matching the AlertManager
// webhook convention (labels/annotations maps plus RFC3339-ish startsAt/
// endsAt strings). Unparseable or absent timestamps are kept as nil rather
// than rejecting the whole alert.
type Raw struct {
	Labels      map[string]string `json:"labels" validate:"required,min=1"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt" validate:"omitempty"`
	EndsAt      string            `json:"endsAt" validate:"omitempty"`
}

// Validate rejects a Raw alert with no labels at all before it ever reaches
// Import; an alert missing adlermanager/service/component individually is
// still accepted and silently dropped by the fold, but one
// with an empty or absent labels object is a malformed payload.
func (r Raw) Validate() error {
	return validate.Struct(r)
}

// Import parses a Raw payload into an Alert, applying the status-derivation
// rule last: if EndsAt is present and not in the future, status is forced to
// OK (the alert has already resolved upstream); otherwise status comes from
// the severity label, defaulting to OK.
func Import(raw Raw, now time.Time) Alert {
	a := Alert{
		Labels:      raw.Labels,
		Annotations: raw.Annotations,
		StartsAt:    parseTimestamp(raw.StartsAt),
		EndsAt:      parseTimestamp(raw.EndsAt),
	}
	if a.Labels == nil {
		a.Labels = map[string]string{}
	}
	if a.Annotations == nil {
		a.Annotations = map[string]string{}
	}

	if a.EndsAt != nil && !a.EndsAt.After(now) {
		a.Status = severity.OK
	} else {
		a.Status = severity.FromString(a.Labels[LabelSeverity], severity.OK)
	}
	return a
}

// parseTimestamp tries RFC3339 (with and without sub-second fractions,
// dropping nanosecond fractions for persistence) and returns nil on failure
// or empty input: unparseable timestamps yield null for that field rather
// than rejecting the alert.
func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.Truncate(time.Second).UTC()
			return &t
		}
	}
	return nil
}

func isTruthy(v string) bool {
	switch v {
	case "1", "t", "T", "true", "True", "TRUE", "yes", "y":
		return true
	default:
		return false
	}
}
