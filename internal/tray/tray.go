// Package tray shows the engine's mode in the Windows notification area.
// Left-click toggles between intercept and pass-through; the right-click
// menu also toggles the candidate overlay and quits.
package tray

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotSupported is returned by Run where there is no notification area
// implementation.
var ErrNotSupported = errors.New("tray not supported on this platform")

// Action is a user request from the tray.
type Action int

const (
	ActionNone Action = iota
	ActionToggleMode
	ActionToggleOverlay
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggleMode:
		return "toggle-mode"
	case ActionToggleOverlay:
		return "toggle-overlay"
	case ActionQuit:
		return "quit"
	}
	return "none"
}

// State is what the tray displays.
type State struct {
	Intercepting     bool
	OverlayVisible   bool
	OverlayAvailable bool
}

// MenuItem is one entry of the context menu.
type MenuItem struct {
	Label     string
	Action    Action
	Disabled  bool
	Separator bool
}

// Menu builds the context menu for st.
func Menu(st State) []MenuItem {
	items := []MenuItem{
		{Label: modeLabel(st.Intercepting), Disabled: true},
		{Separator: true},
	}
	if st.Intercepting {
		items = append(items, MenuItem{Label: "Switch to pass-through", Action: ActionToggleMode})
	} else {
		items = append(items, MenuItem{Label: "Switch to Liu input", Action: ActionToggleMode})
	}
	if st.OverlayAvailable {
		label := "Show candidates"
		if st.OverlayVisible {
			label = "Hide candidates"
		}
		items = append(items, MenuItem{Label: label, Action: ActionToggleOverlay})
	}
	return append(items,
		MenuItem{Separator: true},
		MenuItem{Label: "Quit", Action: ActionQuit},
	)
}

// Tooltip returns the hover text for st, prefixed with name.
func Tooltip(name string, st State) string {
	return name + ": " + modeLabel(st.Intercepting)
}

func modeLabel(intercepting bool) string {
	if intercepting {
		return "Liu input"
	}
	return "pass-through"
}

// Config configures the tray icon.
type Config struct {
	// Name prefixes the tooltip. Defaults to "ucliu".
	Name string

	// IconPath is an .ico file. A stock icon is used when it cannot be
	// loaded.
	IconPath string

	// State is polled to refresh the tooltip.
	State func() State

	// OnAction runs on the tray thread for each menu choice or click.
	OnAction func(Action)

	// Poll is the tooltip refresh interval. Defaults to one second.
	Poll time.Duration

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "ucliu"
	}
	if c.State == nil {
		c.State = func() State { return State{} }
	}
	if c.OnAction == nil {
		c.OnAction = func(Action) {}
	}
	if c.Poll <= 0 {
		c.Poll = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Run shows the icon and blocks until ctx is cancelled or the icon's window
// is destroyed.
func Run(ctx context.Context, cfg Config) error {
	cfg.setDefaults()
	return run(ctx, cfg)
}
