package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "ucliu"

// ExecutableDir returns the directory holding the running binary. The
// dictionary, custom dictionary and lock file live there by default.
// Falls back to the working directory.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/ucliu/
//   - Linux:   ~/.config/ucliu/
//   - Windows: %APPDATA%\ucliu\
func PlatformConfigDir() string {
	if dir := os.Getenv("UCLIU_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir(), ".config", appName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", appName)
	default:
		return filepath.Join(homeDir(), "."+appName)
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/ucliu/
//   - Linux:   ~/.local/state/ucliu/
//   - Windows: %LOCALAPPDATA%\ucliu\logs\
func PlatformLogDir() string {
	if dir := os.Getenv("UCLIU_DIR"); dir != "" {
		return filepath.Join(dir, "logs")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case "linux":
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir(), ".local", "state", appName)
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appName, "logs")
		}
		return filepath.Join(homeDir(), "AppData", "Local", appName, "logs")
	default:
		return filepath.Join(homeDir(), "."+appName, "logs")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations:
// the executable's directory first, then the platform config directory.
// Returns an empty string if none is found.
func FindConfigFile() string {
	for _, dir := range []string{ExecutableDir(), PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// ExpandPaths resolves ~/ prefixes in every path setting.
func (c *Config) ExpandPaths() {
	c.Dictionary.Path = expandPath(c.Dictionary.Path)
	c.Dictionary.CustomPath = expandPath(c.Dictionary.CustomPath)
	c.Logging.FilePath = expandPath(c.Logging.FilePath)
	c.Instance.LockPath = expandPath(c.Instance.LockPath)
}

// EnsureDirectories creates the directories the configuration writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Instance.LockPath)}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
