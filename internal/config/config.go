package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PixPMusic/gopher-apc/internal/actions"
)

// DefaultDeviceHint is the substring used to discover the surface's MIDI
// port when no port name is configured. Matching exactly one port is
// required; with several APCs attached the port must be set explicitly.
const DefaultDeviceHint = "APC MINI"

// PluginConfig activates one plugin instance on a set of zones.
type PluginConfig struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`  // "demo", "passthrough", "actionpad"
	Zones []string `json:"zones"` // "matrix", "horizontal", "vertical"
}

// PadBinding maps one matrix pad to an action for the actionpad plugin.
type PadBinding struct {
	Index    uint8  `json:"index"` // matrix pad 0-63
	ActionID string `json:"action_id"`
}

// Config holds the daemon configuration.
type Config struct {
	// Port is the exact MIDI port name of the surface. Empty means
	// auto-discovery by DeviceHint.
	Port       string `json:"port"`
	DeviceHint string `json:"device_hint"`

	// ResyncSeconds enables a periodic full LED resync as a defense
	// against the surface silently dropping messages. 0 disables it.
	ResyncSeconds int `json:"resync_seconds"`

	// EnableStandbySupport blanks the surface before system sleep and
	// resyncs it after wakeup, via systemd-logind. Linux only.
	EnableStandbySupport bool `json:"enable_standby_support"`

	Plugins     []PluginConfig   `json:"plugins"`
	Actions     []actions.Action `json:"actions"`
	PadBindings []PadBinding     `json:"pad_bindings"`
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "gopher-apc"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Default returns the configuration used when none exists on disk: the
// demo plugin on every zone, discovery by device hint.
func Default() *Config {
	return &Config{
		DeviceHint:           DefaultDeviceHint,
		EnableStandbySupport: true,
		Plugins: []PluginConfig{
			{Name: "Demo", Type: "demo", Zones: []string{"matrix", "horizontal", "vertical"}},
		},
	}
}

// Load reads the config from disk, returning defaults if not found
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile reads the config from an explicit path, returning defaults if
// the file does not exist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.DeviceHint == "" {
		cfg.DeviceHint = DefaultDeviceHint
	}
	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// ActionStore returns a store over the configured actions.
func (c *Config) ActionStore() *actions.Store {
	return actions.NewStore(c.Actions)
}
