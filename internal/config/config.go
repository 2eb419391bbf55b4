// Package config handles configuration loading, validation, and hot reload
// for ucliu.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	Dictionary DictionaryConfig `toml:"dictionary" json:"dictionary" yaml:"dictionary"`
	Hotkeys    HotkeyConfig     `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`
	Input      InputConfig      `toml:"input" json:"input" yaml:"input"`
	Delivery   DeliveryConfig   `toml:"delivery" json:"delivery" yaml:"delivery"`
	Overlay    OverlayConfig    `toml:"overlay" json:"overlay" yaml:"overlay"`
	Logging    LoggingConfig    `toml:"logging" json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics" json:"metrics" yaml:"metrics"`
	Instance   InstanceConfig   `toml:"instance" json:"instance" yaml:"instance"`
}

// DictionaryConfig locates the code tables.
type DictionaryConfig struct {
	// Path is the main table, {"chardefs": {code: [candidates]}}.
	Path string `toml:"path" json:"path" yaml:"path"`

	// CustomPath is the user dictionary, {code: [words]}. Optional.
	CustomPath string `toml:"custom_path" json:"custom_path" yaml:"custom_path"`

	// Validate checks both files against their JSON schema before loading.
	Validate bool `toml:"validate" json:"validate" yaml:"validate"`

	// WatchCustom reloads the custom dictionary when it changes on disk.
	WatchCustom bool `toml:"watch_custom" json:"watch_custom" yaml:"watch_custom"`
}

// HotkeyConfig holds the global bindings, e.g. "ctrl+space" or "f4".
type HotkeyConfig struct {
	Overlay  string `toml:"overlay" json:"overlay" yaml:"overlay"`
	Quit     string `toml:"quit" json:"quit" yaml:"quit"`
	NextPage string `toml:"next_page" json:"next_page" yaml:"next_page"`
	PrevPage string `toml:"prev_page" json:"prev_page" yaml:"prev_page"`
}

// InputConfig configures the keyboard source.
type InputConfig struct {
	// StartIntercepting selects the initial mode.
	StartIntercepting bool `toml:"start_intercepting" json:"start_intercepting" yaml:"start_intercepting"`

	// Source is "auto", "hook" (Windows), "ibus" (Linux) or "simulated".
	Source string `toml:"source" json:"source" yaml:"source"`
}

// DeliveryConfig configures how candidates reach the focused window.
type DeliveryConfig struct {
	// Method is "auto", "paste", "clipboard" or "ibus".
	Method string `toml:"method" json:"method" yaml:"method"`

	// SettleMs is the pause between writing the clipboard and pasting.
	SettleMs int `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms"`

	// RestoreClipboard puts the previous clipboard text back after pasting.
	RestoreClipboard bool `toml:"restore_clipboard" json:"restore_clipboard" yaml:"restore_clipboard"`

	RestoreDelayMs int `toml:"restore_delay_ms" json:"restore_delay_ms" yaml:"restore_delay_ms"`
}

// OverlayConfig configures the candidate display.
type OverlayConfig struct {
	// Mode is "window", "console" or "none".
	Mode         string `toml:"mode" json:"mode" yaml:"mode"`
	StartVisible bool   `toml:"start_visible" json:"start_visible" yaml:"start_visible"`
	Width        int    `toml:"width" json:"width" yaml:"width"`
	Height       int    `toml:"height" json:"height" yaml:"height"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" json:"listen" yaml:"listen"`
}

// InstanceConfig configures the single-instance lock.
type InstanceConfig struct {
	LockPath string `toml:"lock_path" json:"lock_path" yaml:"lock_path"`
}

// DefaultConfig returns a configuration with sensible defaults. Data files
// live beside the executable.
func DefaultConfig() *Config {
	dir := ExecutableDir()

	return &Config{
		Version: Version,
		Dictionary: DictionaryConfig{
			Path:        filepath.Join(dir, "liu.json"),
			CustomPath:  filepath.Join(dir, "custom.json"),
			Validate:    false,
			WatchCustom: true,
		},
		Hotkeys: HotkeyConfig{
			Overlay:  "ctrl+space",
			Quit:     "f4",
			NextPage: "pagedown",
			PrevPage: "pageup",
		},
		Input: InputConfig{
			StartIntercepting: true,
			Source:            "auto",
		},
		Delivery: DeliveryConfig{
			Method:           "auto",
			SettleMs:         10,
			RestoreClipboard: false,
			RestoreDelayMs:   100,
		},
		Overlay: OverlayConfig{
			Mode:         "window",
			StartVisible: false,
			Width:        520,
			Height:       130,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformLogDir(), "ucliu.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Instance: InstanceConfig{
			LockPath: filepath.Join(dir, "UCLLIU.lock"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from path. A missing file yields the defaults.
// The format follows the extension; unknown extensions are sniffed.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

// autoDetectAndParse tries TOML, then JSON, then YAML. Each attempt starts
// from fresh defaults so a failed attempt leaves nothing behind.
func autoDetectAndParse(data []byte, cfg *Config) error {
	try := func(decode func(*Config) error) bool {
		c := DefaultConfig()
		if decode(c) != nil {
			return false
		}
		*cfg = *c
		return true
	}
	if try(func(c *Config) error { _, err := toml.Decode(string(data), c); return err }) {
		return nil
	}
	if try(func(c *Config) error { return json.Unmarshal(data, c) }) {
		return nil
	}
	if try(func(c *Config) error { return yaml.Unmarshal(data, c) }) {
		return nil
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides. Variables are
// prefixed with UCLIU_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("UCLIU_DICTIONARY"); v != "" {
		c.Dictionary.Path = v
	}
	if v := os.Getenv("UCLIU_CUSTOM_DICTIONARY"); v != "" {
		c.Dictionary.CustomPath = v
	}
	if v := os.Getenv("UCLIU_START_INTERCEPTING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Input.StartIntercepting = b
		}
	}
	if v := os.Getenv("UCLIU_INPUT_SOURCE"); v != "" {
		c.Input.Source = v
	}
	if v := os.Getenv("UCLIU_DELIVERY"); v != "" {
		c.Delivery.Method = v
	}
	if v := os.Getenv("UCLIU_OVERLAY"); v != "" {
		c.Overlay.Mode = v
	}
	if v := os.Getenv("UCLIU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("UCLIU_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("UCLIU_METRICS_LISTEN"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
	if v := os.Getenv("UCLIU_LOCK_PATH"); v != "" {
		c.Instance.LockPath = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// SettleDelay returns the clipboard settle delay.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Delivery.SettleMs) * time.Millisecond
}

// RestoreDelay returns the delay before the clipboard is restored.
func (c *Config) RestoreDelay() time.Duration {
	return time.Duration(c.Delivery.RestoreDelayMs) * time.Millisecond
}
