package alertmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evilham/prometheus-adlermanager/internal/severity"
)

func TestRaw_ValidateRejectsEmptyLabels(t *testing.T) {
	r := Raw{}
	assert.Error(t, r.Validate())

	r = Raw{Labels: map[string]string{"adlermanager": "site"}}
	assert.NoError(t, r.Validate())
}

func TestImport_DerivesStatusFromSeverityLabel(t *testing.T) {
	now := time.Now()
	a := Import(Raw{Labels: map[string]string{LabelSeverity: "error"}}, now)
	assert.Equal(t, severity.ERROR, a.Status)
}

func TestImport_ResolvedEndsAtForcesOK(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute).Format(time.RFC3339)

	a := Import(Raw{
		Labels: map[string]string{LabelSeverity: "error"},
		EndsAt: past,
	}, now)

	assert.Equal(t, severity.OK, a.Status, "an EndsAt not in the future means the alert already resolved upstream")
}

func TestImport_FutureEndsAtKeepsLabelSeverity(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour).Format(time.RFC3339)

	a := Import(Raw{
		Labels: map[string]string{LabelSeverity: "warning"},
		EndsAt: future,
	}, now)

	assert.Equal(t, severity.WARNING, a.Status)
}

func TestImport_UnparseableTimestampYieldsNil(t *testing.T) {
	a := Import(Raw{StartsAt: "not-a-timestamp"}, time.Now())
	assert.Nil(t, a.StartsAt)
}

func TestAlert_Accessors(t *testing.T) {
	a := Alert{Labels: map[string]string{
		LabelSite:      "status.example.org",
		LabelService:   "API",
		LabelComponent: "web",
		LabelHeartbeat: "true",
	}}

	assert.Equal(t, "status.example.org", a.Site())
	assert.Equal(t, "API", a.Service())
	assert.Equal(t, "web", a.Component())
	assert.True(t, a.IsHeartbeat())
	assert.True(t, a.HasRequiredLabels())
}

func TestAlert_HasRequiredLabelsFalseWhenAnyMissing(t *testing.T) {
	a := Alert{Labels: map[string]string{LabelSite: "status.example.org", LabelService: "API"}}
	assert.False(t, a.HasRequiredLabels())
}

func TestIsHeartbeat_RecognizesTruthyVariants(t *testing.T) {
	for _, v := range []string{"1", "t", "T", "true", "True", "TRUE", "yes", "y"} {
		a := Alert{Labels: map[string]string{LabelHeartbeat: v}}
		require.True(t, a.IsHeartbeat(), "expected %q to be truthy", v)
	}
	assert.False(t, Alert{Labels: map[string]string{LabelHeartbeat: "0"}}.IsHeartbeat())
	assert.False(t, Alert{}.IsHeartbeat())
}
