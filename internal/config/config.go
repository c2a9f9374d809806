// Package config binds the environment variables that configure this
// service (DATA_DIR, WEB_ENDPOINT, ...) into a typed Config, using a
// viper-bound struct with explicit defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of environment-driven settings the server needs at
// startup.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	WebEndpoint   string `mapstructure:"web_endpoint"`
	WebStaticDir  string `mapstructure:"web_static_dir"`

	SSHEnabled  bool   `mapstructure:"ssh_enabled"`
	SSHEndpoint string `mapstructure:"ssh_endpoint"`
	SSHKeySize  int    `mapstructure:"ssh_key_size"`
	SSHKeysDir  string `mapstructure:"ssh_keys_dir"`

	AlertResolveTimeout   time.Duration `mapstructure:"-"`
	GroupTimeout          time.Duration `mapstructure:"-"`
	MonitoringDownTimeout time.Duration `mapstructure:"-"`

	AlertResolveMinutes   int `mapstructure:"alert_resolve_minutes"`
	GroupIncidentsMinutes int `mapstructure:"group_incidents_minutes"`
	MonitoringDownMinutes int `mapstructure:"monitoring_down_minutes"`

	AuditDBPath string `mapstructure:"audit_db_path"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// Load reads DATA_DIR and friends from the environment, applying a
// production-sane default for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	defaults := map[string]any{
		"data_dir":                 "/var/lib/prometheus-adlermanager",
		"web_endpoint":             "0.0.0.0:8080",
		"web_static_dir":           "",
		"ssh_enabled":              false,
		"ssh_endpoint":             "0.0.0.0:2222",
		"ssh_key_size":             4096,
		"ssh_keys_dir":             "",
		"alert_resolve_minutes":    5,
		"group_incidents_minutes":  60,
		"monitoring_down_minutes":  2,
		"audit_db_path":            "",
		"log_level":                "info",
		"log_format":               "json",
		"log_file":                 "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, envName(key)); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.AlertResolveTimeout = time.Duration(cfg.AlertResolveMinutes) * time.Minute
	cfg.GroupTimeout = time.Duration(cfg.GroupIncidentsMinutes) * time.Minute
	cfg.MonitoringDownTimeout = time.Duration(cfg.MonitoringDownMinutes) * time.Minute

	return &cfg, nil
}

// envName upper-cases a config key into its environment variable name
// (data_dir -> DATA_DIR).
func envName(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
