package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Marshal encodes cfg in the given format: "toml", "json" or "yaml".
func Marshal(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	}
	return nil, fmt.Errorf("unsupported config format: %s", format)
}

// SaveConfig writes cfg to path in the format implied by its extension.
// Unknown extensions are written as TOML.
func SaveConfig(cfg *Config, path string) error {
	format := "toml"
	switch filepath.Ext(path) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	}

	data, err := Marshal(cfg, format)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
