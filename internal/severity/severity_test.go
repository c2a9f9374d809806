package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrdering(t *testing.T) {
	assert.Less(t, int(OK), int(INFO))
	assert.Less(t, int(INFO), int(WARNING))
	assert.Less(t, int(WARNING), int(ERROR))
}

func TestMax(t *testing.T) {
	assert.Equal(t, ERROR, Max(OK, ERROR))
	assert.Equal(t, WARNING, Max(WARNING, INFO))
	assert.Equal(t, OK, Max(OK, OK))
}

func TestFromString(t *testing.T) {
	cases := map[string]Severity{
		"":         OK,
		"ok":       OK,
		"info":     INFO,
		"warning":  WARNING,
		"warn":     WARNING,
		"error":    ERROR,
		"critical": ERROR,
		"CRITICAL": ERROR,
		"bogus":    OK,
	}
	for raw, want := range cases {
		assert.Equal(t, want, FromString(raw, OK), "FromString(%q)", raw)
	}
	assert.Equal(t, ERROR, FromString("bogus", ERROR), "unrecognized input falls back to the caller's default")
}

func TestTag(t *testing.T) {
	assert.Equal(t, "danger", ERROR.Tag())
	assert.Equal(t, "warning", WARNING.Tag())
	assert.Equal(t, "success", OK.Tag())
	assert.Equal(t, "success", INFO.Tag())
}

func TestString(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "error", ERROR.String())
	assert.Equal(t, "unknown", Severity(99).String())
}
