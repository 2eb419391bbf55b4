package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"ucliu/internal/dispatch"
	"ucliu/internal/keystroke"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
	// Warning marks issues that do not stop the program, such as a data
	// file that does not exist yet.
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	return e.Warning
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	if e.HasErrors() {
		return ErrInvalidConfig
	}
	return nil
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig validates the configuration. Only error-level issues are
// returned; use Check to see warnings too.
func ValidateConfig(c *Config) error {
	if errs := Check(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// Check runs every section validator and returns all issues found.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateDictionary(&c.Dictionary)...)
	errs = append(errs, validateHotkeys(&c.Hotkeys)...)
	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validateDelivery(&c.Delivery)...)
	errs = append(errs, validateOverlay(&c.Overlay)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateInstance(&c.Instance)...)
	return errs
}

func validateDictionary(d *DictionaryConfig) ValidationErrors {
	var errs ValidationErrors

	if d.Path == "" {
		errs = append(errs, *RequiredFieldError("dictionary.path"))
	} else if _, err := os.Stat(expandPath(d.Path)); err != nil {
		errs = append(errs, ValidationError{
			Field:   "dictionary.path",
			Message: fmt.Sprintf("cannot read dictionary: %v", err),
			Warning: true,
		})
	}

	if d.CustomPath != "" && filepath.Clean(expandPath(d.CustomPath)) == filepath.Clean(expandPath(d.Path)) {
		errs = append(errs, ValidationError{
			Field:   "dictionary.custom_path",
			Message: "custom dictionary must differ from the main dictionary",
		})
	}
	return errs
}

func validateHotkeys(h *HotkeyConfig) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[keystroke.Hotkey]string)
	for _, f := range []struct {
		field, value string
		required     bool
	}{
		{"hotkeys.quit", h.Quit, false},
		{"hotkeys.overlay", h.Overlay, false},
		{"hotkeys.next_page", h.NextPage, true},
		{"hotkeys.prev_page", h.PrevPage, true},
	} {
		if f.value == "" {
			if f.required {
				errs = append(errs, *RequiredFieldError(f.field))
			}
			continue
		}
		hk, err := keystroke.ParseHotkey(f.value)
		if err != nil {
			errs = append(errs, ValidationError{Field: f.field, Message: err.Error()})
			continue
		}
		if other, dup := seen[hk]; dup {
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("%s is already bound to %s", hk, other),
			})
			continue
		}
		seen[hk] = f.field

		if !hk.Ctrl && !hk.Alt && (keystroke.IsLetter(hk.VK) || keystroke.IsDigit(hk.VK)) {
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: fmt.Sprintf("%s would shadow typing; add ctrl or alt", hk),
			})
		}
	}
	return errs
}

func validateInput(i *InputConfig) ValidationErrors {
	var errs ValidationErrors

	switch i.Source {
	case "auto", "hook", "ibus", "simulated":
	default:
		errs = append(errs, ValidationError{
			Field:   "input.source",
			Message: fmt.Sprintf("invalid source: %s (valid: auto, hook, ibus, simulated)", i.Source),
		})
	}
	return errs
}

func validateDelivery(d *DeliveryConfig) ValidationErrors {
	var errs ValidationErrors

	switch d.Method {
	case "auto", "paste", "clipboard", "ibus":
	default:
		errs = append(errs, ValidationError{
			Field:   "delivery.method",
			Message: fmt.Sprintf("invalid method: %s (valid: auto, paste, clipboard, ibus)", d.Method),
		})
	}

	if d.SettleMs < 0 || d.SettleMs > 1000 {
		errs = append(errs, *RangeError("delivery.settle_ms", 0, 1000))
	}
	if d.RestoreClipboard && (d.RestoreDelayMs < 0 || d.RestoreDelayMs > 10000) {
		errs = append(errs, *RangeError("delivery.restore_delay_ms", 0, 10000))
	}
	return errs
}

func validateOverlay(o *OverlayConfig) ValidationErrors {
	var errs ValidationErrors

	switch o.Mode {
	case "window", "console", "none":
	default:
		errs = append(errs, ValidationError{
			Field:   "overlay.mode",
			Message: fmt.Sprintf("invalid mode: %s (valid: window, console, none)", o.Mode),
		})
	}

	if o.Mode == "window" {
		if o.Width < 100 || o.Width > 4000 {
			errs = append(errs, *RangeError("overlay.width", 100, 4000))
		}
		if o.Height < 50 || o.Height > 4000 {
			errs = append(errs, *RangeError("overlay.height", 50, 4000))
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid output: %s (valid: stdout, stderr, file)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.Listen, err),
		})
	}
	return errs
}

func validateInstance(i *InstanceConfig) ValidationErrors {
	var errs ValidationErrors

	if i.LockPath == "" {
		errs = append(errs, *RequiredFieldError("instance.lock_path"))
	}
	return errs
}

// Parse converts the configured hotkeys. Empty bindings are disabled.
func (h HotkeyConfig) Parse() (dispatch.Hotkeys, error) {
	var hk dispatch.Hotkeys
	for _, f := range []struct {
		dst   *keystroke.Hotkey
		value string
	}{
		{&hk.Quit, h.Quit},
		{&hk.Overlay, h.Overlay},
		{&hk.NextPage, h.NextPage},
		{&hk.PrevPage, h.PrevPage},
	} {
		if f.value == "" {
			continue
		}
		parsed, err := keystroke.ParseHotkey(f.value)
		if err != nil {
			return dispatch.Hotkeys{}, err
		}
		*f.dst = parsed
	}
	return hk, nil
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
