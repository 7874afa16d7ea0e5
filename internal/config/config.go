// Package config provides loading and parsing of the backboxd
// configuration file using Viper. It defines the full configuration
// schema and the built-in defaults for every setting.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pinstack/backbox/internal/logging"
)

// Config represents the full structure of the backboxd configuration file.
type Config struct {
	Listen   ListenConfig   `mapstructure:"listen"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      logging.Config `mapstructure:"log"`
}

// ListenConfig defines where the daemon waits for the origin controller.
type ListenConfig struct {
	Host       string `mapstructure:"host"`        // empty binds all interfaces
	Port       int    `mapstructure:"port"`        // TCP port for the origin connection
	ReadBuffer int    `mapstructure:"read_buffer"` // per-connection read buffer in bytes
}

// DispatchConfig tunes the inbound queue and command handling.
type DispatchConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity"` // messages buffered between reads and ticks
	TickInterval  time.Duration `mapstructure:"tick_interval"`  // how often queued messages are processed
	TimerTriggers bool          `mapstructure:"timer_triggers"` // decode timer/tilt triggers into typed events
	StrictUnknown bool          `mapstructure:"strict_unknown"` // reply with an error to unknown commands
}

// ResolveConfigPath returns the best config path for a given subsystem and filename.
// It checks, in order:
// 1. $BACKBOX_CONFIG if set (absolute path)
// 2. ~/.backbox/<subsystem>/<file>
// 3. /etc/backbox/<file>
func ResolveConfigPath(subsystem, file string) (string, error) {
	if env := os.Getenv("BACKBOX_CONFIG"); env != "" {
		return env, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".backbox", subsystem, file)
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}
	systemPath := filepath.Join("/etc/backbox", file)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}
	return "", fmt.Errorf("no config found for %s/%s", subsystem, file)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.host", "")
	v.SetDefault("listen.port", 9001)
	v.SetDefault("listen.read_buffer", 4096)
	v.SetDefault("dispatch.queue_capacity", 512)
	v.SetDefault("dispatch.tick_interval", 33*time.Millisecond)
	v.SetDefault("dispatch.timer_triggers", true)
	v.SetDefault("dispatch.strict_unknown", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.to_stdout", true)
	v.SetDefault("log.to_stderr", false)
	v.SetDefault("log.to_file", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", false)
}

// LoadConfig loads the backboxd configuration from disk using Viper.
// A missing file is not an error: the daemon then runs on the defaults
// above. Every key can also be overridden through the environment as
// BACKBOX_<SECTION>_<KEY>, e.g. BACKBOX_LISTEN_PORT=9001.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BACKBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, err := ResolveConfigPath("backboxd", "backboxd.yaml"); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}
