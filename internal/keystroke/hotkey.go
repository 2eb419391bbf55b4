package keystroke

import (
	"fmt"
	"strconv"
	"strings"
)

// Hotkey is a key plus the modifiers that must be held with it.
type Hotkey struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	VK    uint16
}

var hotkeyAliases = map[string]uint16{
	"esc":         VKEscape,
	"escape":      VKEscape,
	"space":       VKSpace,
	"enter":       VKReturn,
	"return":      VKReturn,
	"tab":         VKTab,
	"backspace":   VKBack,
	"pageup":      VKPrior,
	"pgup":        VKPrior,
	"pagedown":    VKNext,
	"pgdn":        VKNext,
	"home":        VKHome,
	"end":         VKEnd,
	"insert":      VKInsert,
	"delete":      VKDelete,
	"pause":       VKPause,
	"left":        VKLeft,
	"up":          VKUp,
	"right":       VKRight,
	"down":        VKDown,
	"capslock":    VKCapital,
	"numlock":     VKNumLock,
	"scrolllock":  VKScroll,
	"printscreen": VKSnapshot,
	"lwin":        VKLWin,
	"rwin":        VKRWin,
	"apps":        VKApps,
	"comma":       VKComma,
	"period":      VKPeriod,
	"decimal":     VKDecimal,
}

// ParseHotkey parses strings such as "f4", "ctrl+space" or "ctrl+alt+k".
// Names are case-insensitive. Modifiers may come in any order but the key
// must be last.
func ParseHotkey(s string) (Hotkey, error) {
	var hk Hotkey
	s = strings.TrimSpace(s)
	if s == "" {
		return hk, fmt.Errorf("empty hotkey")
	}
	parts := strings.Split(strings.ToLower(s), "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "ctrl", "control":
			hk.Ctrl = true
		case "alt", "menu":
			hk.Alt = true
		case "shift":
			hk.Shift = true
		default:
			return hk, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
		}
	}

	key := parts[len(parts)-1]
	vk, ok := keyFromName(key)
	if !ok {
		return hk, fmt.Errorf("hotkey %q: unknown key %q", s, key)
	}
	if IsShift(vk) || IsControl(vk) || IsAlt(vk) {
		return hk, fmt.Errorf("hotkey %q: modifier cannot be the key", s)
	}
	hk.VK = vk
	return hk, nil
}

// MustParseHotkey is ParseHotkey for constants; it panics on error.
func MustParseHotkey(s string) Hotkey {
	hk, err := ParseHotkey(s)
	if err != nil {
		panic(err)
	}
	return hk
}

func keyFromName(name string) (uint16, bool) {
	if len(name) == 1 {
		ch := name[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return VKA + uint16(ch-'a'), true
		case ch >= '0' && ch <= '9':
			return VK0 + uint16(ch-'0'), true
		case ch == ',':
			return VKComma, true
		case ch == '.':
			return VKPeriod, true
		}
	}
	if vk, ok := hotkeyAliases[name]; ok {
		return vk, true
	}
	switch name {
	case "ctrl", "control":
		return VKControl, true
	case "alt", "menu":
		return VKMenu, true
	case "shift":
		return VKShift, true
	}
	if strings.HasPrefix(name, "f") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= 24 {
			return VKF1 + uint16(n-1), true
		}
	}
	return 0, false
}

// Matches reports whether vk with the given modifier state triggers hk.
// Modifiers not named by hk are ignored.
func (hk Hotkey) Matches(vk uint16, ctrl, alt, shift bool) bool {
	if hk.VK == 0 || vk != hk.VK {
		return false
	}
	if hk.Ctrl && !ctrl {
		return false
	}
	if hk.Alt && !alt {
		return false
	}
	if hk.Shift && !shift {
		return false
	}
	return true
}

// IsZero reports whether hk is unset.
func (hk Hotkey) IsZero() bool { return hk.VK == 0 }

func (hk Hotkey) String() string {
	if hk.IsZero() {
		return ""
	}
	var parts []string
	if hk.Ctrl {
		parts = append(parts, "ctrl")
	}
	if hk.Alt {
		parts = append(parts, "alt")
	}
	if hk.Shift {
		parts = append(parts, "shift")
	}
	parts = append(parts, KeyName(hk.VK))
	return strings.Join(parts, "+")
}

// UnmarshalText implements encoding.TextUnmarshaler so hotkeys can be used
// directly in config files.
func (hk *Hotkey) UnmarshalText(b []byte) error {
	parsed, err := ParseHotkey(string(b))
	if err != nil {
		return err
	}
	*hk = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (hk Hotkey) MarshalText() ([]byte, error) {
	return []byte(hk.String()), nil
}
