package site

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverride_StateIsForced(t *testing.T) {
	assert.False(t, Override{}.StateIsForced())
	assert.False(t, Override{ForceState: true}.StateIsForced(), "force_state alone without a message is not forced")
	assert.False(t, Override{Message: "hello"}.StateIsForced(), "a message alone without force_state is not forced")
	assert.True(t, Override{Message: "hello", ForceState: true}.StateIsForced())
}

func TestOverride_TitleAndBodySplitOnBlankLine(t *testing.T) {
	c := Override{Message: "Scheduled maintenance\n\nWe are migrating the database."}
	assert.Equal(t, "Scheduled maintenance", c.Title())
	assert.Equal(t, "We are migrating the database.", c.Body())
}

func TestOverride_TitleOnlyWhenNoBlankLine(t *testing.T) {
	c := Override{Message: "Everything is fine"}
	assert.Equal(t, "Everything is fine", c.Title())
	assert.Empty(t, c.Body())
}

func TestLoadConfig_MissingFileYieldsZeroValue(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, Override{}, cfg)
}

func TestSaveConfig_ThenLoadConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := Override{Message: "partial outage", ForceState: true}

	require.NoError(t, SaveConfig(dir, want))
	got, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(ConfigFileMode), info.Mode().Perm())
}
