// Package controlcli handles loading and managing local backboxctl configuration.
// This includes known daemon connection targets and client defaults.
package controlcli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAddress is used when no daemon was named on the command line
// and the config file names no default.
const DefaultAddress = "127.0.0.1:9001"

// CtlCfg is the loaded client configuration shared by all subcommands.
var CtlCfg *CTLConfig

// DaemonConfig represents one connection target.
type DaemonConfig struct {
	Address string `yaml:"address"`
}

// CTLConfig holds the entire client-side backboxctl configuration.
type CTLConfig struct {
	Default string                  `yaml:"default,omitempty"`         // daemon used when none is named
	Timeout int                     `yaml:"timeout_seconds,omitempty"` // connect/read timeout in seconds
	Daemons map[string]DaemonConfig `yaml:"daemons"`
}

// LoadCTLConfig loads ~/.backbox/ctl.yaml. A missing file is fine: the
// built-in defaults apply.
func LoadCTLConfig() (*CTLConfig, error) {
	cfgPath := filepath.Join(os.Getenv("HOME"), ".backbox", "ctl.yaml")
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return &CTLConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ctl.yaml: %w", err)
	}

	var config CTLConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse ctl.yaml: %w", err)
	}
	return &config, nil
}

// Resolve picks the address for the given daemon name. An empty name
// selects the configured default, falling back to DefaultAddress.
func (c *CTLConfig) Resolve(name string) (string, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		return DefaultAddress, nil
	}
	d, ok := c.Daemons[name]
	if !ok {
		return "", fmt.Errorf("unknown daemon %q in ctl.yaml", name)
	}
	if d.Address == "" {
		return "", fmt.Errorf("daemon %q has no address", name)
	}
	return d.Address, nil
}

// DialTimeout returns the configured connect timeout or the default.
func (c *CTLConfig) DialTimeout() time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Second
	}
	return 3 * time.Second
}
