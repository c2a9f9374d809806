// Package site implements SiteManager and the operator-facing
// SiteConfig override.
package site

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileMode is the permission the operator override (config.yaml) is
// persisted with.
const ConfigFileMode = 0640

// ConfigFileName is the name of the per-site operator override file.
const ConfigFileName = "config.yaml"

// Override is the per-site operator override: a free-form message and whether
// it should force the status page into a non-nominal state regardless of the
// folded incident severity.
type Override struct {
	Message    string `yaml:"message"`
	ForceState bool   `yaml:"force_state"`
}

// StateIsForced reports whether the operator override should take precedence
// over the computed status.
func (c Override) StateIsForced() bool {
	return c.ForceState && c.Message != ""
}

// Title returns the first paragraph of Message.
func (c Override) Title() string {
	title, _ := splitMessage(c.Message)
	return title
}

// Body returns everything after the first paragraph of Message.
func (c Override) Body() string {
	_, body := splitMessage(c.Message)
	return body
}

// splitMessage splits on the first blank line, the paragraph-break
// convention the rendered status message uses.
func splitMessage(message string) (title, body string) {
	parts := strings.SplitN(message, "\n\n", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		body = strings.TrimSpace(parts[1])
	}
	return title, body
}

// LoadConfig reads config.yaml from dir. A missing file is not an error: it
// yields the zero Override (no override in force), matching the operator never
// having set one.
func LoadConfig(dir string) (Override, error) {
	data, err := os.ReadFile(dir + "/" + ConfigFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return Override{}, nil
		}
		return Override{}, err
	}
	var cfg Override
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Override{}, err
	}
	return cfg, nil
}

// SaveConfig persists cfg to config.yaml in dir at ConfigFileMode, the write
// path the SSH admin shell's set_site_config command drives.
func SaveConfig(dir string, cfg Override) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(dir+"/"+ConfigFileName, data, ConfigFileMode)
}
