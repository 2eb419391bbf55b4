package overlay

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette defines the overlay colors.
type Palette struct {
	Background color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Pending    color.NRGBA
	PadText    color.NRGBA
}

// Metrics defines the overlay sizes.
type Metrics struct {
	Spacing       unit.Dp
	Padding       unit.Dp
	FontCode      unit.Sp
	FontCandidate unit.Sp
	FontStatus    unit.Sp
}

// Theme wraps the material theme with overlay styling.
type Theme struct {
	*material.Theme
	Palette Palette
	Metrics Metrics
}

// NewTheme creates a theme tuned for the current OS.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xF0},
		Primary:    color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF},
		Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF},
		Pending:    color.NRGBA{R: 0xFF, G: 0xB9, B: 0x00, A: 0xFF},
		PadText:    color.NRGBA{R: 0x6B, G: 0xBC, B: 0x0F, A: 0xFF},
	}
	t.Metrics = Metrics{
		Spacing:       unit.Dp(4),
		Padding:       unit.Dp(10),
		FontCode:      unit.Sp(18),
		FontCandidate: unit.Sp(20),
		FontStatus:    unit.Sp(11),
	}

	// CJK glyphs in the macOS system font render smaller.
	if runtime.GOOS == "darwin" {
		t.Palette.Primary = color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF}
		t.Metrics.FontCandidate = unit.Sp(22)
	}
	return t
}
