package keystroke

import "fmt"

// Windows virtual-key codes used by the dispatcher. Other platforms map their
// native key identities onto these.
const (
	VKBack     uint16 = 0x08
	VKTab      uint16 = 0x09
	VKReturn   uint16 = 0x0D
	VKShift    uint16 = 0x10
	VKControl  uint16 = 0x11
	VKMenu     uint16 = 0x12 // Alt
	VKPause    uint16 = 0x13
	VKCapital  uint16 = 0x14
	VKEscape   uint16 = 0x1B
	VKSpace    uint16 = 0x20
	VKPrior    uint16 = 0x21 // Page Up
	VKNext     uint16 = 0x22 // Page Down
	VKEnd      uint16 = 0x23
	VKHome     uint16 = 0x24
	VKLeft     uint16 = 0x25
	VKUp       uint16 = 0x26
	VKRight    uint16 = 0x27
	VKDown     uint16 = 0x28
	VKSnapshot uint16 = 0x2C // Print Screen
	VKInsert   uint16 = 0x2D
	VKDelete   uint16 = 0x2E
	VK0        uint16 = 0x30
	VK9        uint16 = 0x39
	VKA        uint16 = 0x41
	VKB        uint16 = 0x42
	VKC        uint16 = 0x43
	VKV        uint16 = 0x56
	VKZ        uint16 = 0x5A
	VKLWin     uint16 = 0x5B
	VKRWin     uint16 = 0x5C
	VKApps     uint16 = 0x5D
	VKNumpad0  uint16 = 0x60
	VKNumpad9  uint16 = 0x69
	VKDecimal  uint16 = 0x6E
	VKF1       uint16 = 0x70
	VKF4       uint16 = 0x73
	VKF24      uint16 = 0x87
	VKNumLock  uint16 = 0x90
	VKScroll   uint16 = 0x91
	VKLShift   uint16 = 0xA0
	VKRShift   uint16 = 0xA1
	VKLControl uint16 = 0xA2
	VKRControl uint16 = 0xA3
	VKLMenu    uint16 = 0xA4
	VKRMenu    uint16 = 0xA5
	VKComma    uint16 = 0xBC // VK_OEM_COMMA
	VKPeriod   uint16 = 0xBE // VK_OEM_PERIOD
)

// IsShift reports whether vk is either shift key.
func IsShift(vk uint16) bool {
	return vk == VKShift || vk == VKLShift || vk == VKRShift
}

// IsControl reports whether vk is either control key.
func IsControl(vk uint16) bool {
	return vk == VKControl || vk == VKLControl || vk == VKRControl
}

// IsAlt reports whether vk is either alt key.
func IsAlt(vk uint16) bool {
	return vk == VKMenu || vk == VKLMenu || vk == VKRMenu
}

// IsLetter reports whether vk is A..Z.
func IsLetter(vk uint16) bool { return vk >= VKA && vk <= VKZ }

// IsDigit reports whether vk is a top-row digit.
func IsDigit(vk uint16) bool { return vk >= VK0 && vk <= VK9 }

// Letter returns the lowercase letter for a letter key.
func Letter(vk uint16) rune { return rune('a' + vk - VKA) }

// Digit returns the value of a digit key.
func Digit(vk uint16) int { return int(vk - VK0) }

// Symbol returns the composing punctuation for vk: period for the period and
// numpad decimal keys, comma for the comma key.
func Symbol(vk uint16) (byte, bool) {
	switch vk {
	case VKPeriod, VKDecimal:
		return '.', true
	case VKComma:
		return ',', true
	}
	return 0, false
}

var keyNames = map[uint16]string{
	VKBack:     "backspace",
	VKTab:      "tab",
	VKReturn:   "enter",
	VKShift:    "shift",
	VKControl:  "ctrl",
	VKMenu:     "alt",
	VKPause:    "pause",
	VKApps:     "apps",
	VKCapital:  "capslock",
	VKEscape:   "esc",
	VKSpace:    "space",
	VKPrior:    "pageup",
	VKNext:     "pagedown",
	VKEnd:      "end",
	VKHome:     "home",
	VKLeft:     "left",
	VKUp:       "up",
	VKRight:    "right",
	VKDown:     "down",
	VKInsert:   "insert",
	VKDelete:   "delete",
	VKSnapshot: "printscreen",
	VKLWin:     "lwin",
	VKRWin:     "rwin",
	VKNumLock:  "numlock",
	VKScroll:   "scrolllock",
	VKDecimal:  "decimal",
	VKComma:    "comma",
	VKPeriod:   "period",
}

// KeyName returns a short lowercase name for vk, as accepted by ParseHotkey.
func KeyName(vk uint16) string {
	switch {
	case IsLetter(vk):
		return string(Letter(vk))
	case IsDigit(vk):
		return string(rune('0' + Digit(vk)))
	case vk >= VKF1 && vk <= VKF24:
		return fmt.Sprintf("f%d", vk-VKF1+1)
	case IsShift(vk):
		return "shift"
	case IsControl(vk):
		return "ctrl"
	case IsAlt(vk):
		return "alt"
	}
	if n, ok := keyNames[vk]; ok {
		return n
	}
	return fmt.Sprintf("vk%#02x", vk)
}

// VKForRune maps a typed character to the key that produces it on a US
// layout. Upper-case letters map to the same key as lower-case.
func VKForRune(r rune) (uint16, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return VKA + uint16(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return VKA + uint16(r-'A'), true
	case r >= '0' && r <= '9':
		return VK0 + uint16(r-'0'), true
	}
	switch r {
	case ' ':
		return VKSpace, true
	case '\n', '\r':
		return VKReturn, true
	case '\b':
		return VKBack, true
	case '\t':
		return VKTab, true
	case 0x1b:
		return VKEscape, true
	case '.':
		return VKPeriod, true
	case ',':
		return VKComma, true
	}
	return 0, false
}
