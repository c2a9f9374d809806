package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t, "DATA_DIR", "WEB_ENDPOINT", "SSH_ENABLED", "ALERT_RESOLVE_MINUTES",
		"GROUP_INCIDENTS_MINUTES", "MONITORING_DOWN_MINUTES", "LOG_LEVEL", "LOG_FORMAT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/prometheus-adlermanager", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:8080", cfg.WebEndpoint)
	assert.False(t, cfg.SSHEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Minute, cfg.AlertResolveTimeout)
	assert.Equal(t, 60*time.Minute, cfg.GroupTimeout)
	assert.Equal(t, 2*time.Minute, cfg.MonitoringDownTimeout)
}

func TestLoad_ReadsEnvironmentOverrides(t *testing.T) {
	clearEnv(t, "DATA_DIR", "SSH_ENABLED", "ALERT_RESOLVE_MINUTES")

	os.Setenv("DATA_DIR", "/tmp/adlermanager-data")
	os.Setenv("SSH_ENABLED", "true")
	os.Setenv("ALERT_RESOLVE_MINUTES", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/adlermanager-data", cfg.DataDir)
	assert.True(t, cfg.SSHEnabled)
	assert.Equal(t, 10*time.Minute, cfg.AlertResolveTimeout)
}
