package tray

import (
	"context"
	"runtime"
	"testing"
)

func actions(items []MenuItem) []Action {
	var out []Action
	for _, it := range items {
		if it.Action != ActionNone {
			out = append(out, it.Action)
		}
	}
	return out
}

func TestMenuIntercepting(t *testing.T) {
	items := Menu(State{Intercepting: true, OverlayAvailable: true})

	if items[0].Label != "Liu input" || !items[0].Disabled {
		t.Errorf("status item = %+v", items[0])
	}
	if items[2].Label != "Switch to pass-through" {
		t.Errorf("toggle label = %q", items[2].Label)
	}
	if items[3].Label != "Show candidates" {
		t.Errorf("overlay label = %q", items[3].Label)
	}
	got := actions(items)
	want := []Action{ActionToggleMode, ActionToggleOverlay, ActionQuit}
	if len(got) != len(want) {
		t.Fatalf("actions = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMenuPassThroughWithoutOverlay(t *testing.T) {
	items := Menu(State{})
	if items[2].Label != "Switch to Liu input" {
		t.Errorf("toggle label = %q", items[2].Label)
	}
	for _, it := range items {
		if it.Action == ActionToggleOverlay {
			t.Error("overlay item shown without an overlay")
		}
	}
	last := items[len(items)-1]
	if last.Action != ActionQuit {
		t.Errorf("last item = %+v", last)
	}
}

func TestMenuHideCandidates(t *testing.T) {
	items := Menu(State{Intercepting: true, OverlayAvailable: true, OverlayVisible: true})
	if items[3].Label != "Hide candidates" {
		t.Errorf("overlay label = %q", items[3].Label)
	}
}

func TestTooltip(t *testing.T) {
	if got := Tooltip("ucliu", State{Intercepting: true}); got != "ucliu: Liu input" {
		t.Errorf("Tooltip = %q", got)
	}
	if got := Tooltip("ucliu", State{}); got != "ucliu: pass-through" {
		t.Errorf("Tooltip = %q", got)
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{
		ActionNone:          "none",
		ActionToggleMode:    "toggle-mode",
		ActionToggleOverlay: "toggle-overlay",
		ActionQuit:          "quit",
	} {
		if a.String() != want {
			t.Errorf("%d.String() = %q, want %q", a, a.String(), want)
		}
	}
}

func TestRunUnsupported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tray is supported on windows")
	}
	if err := Run(context.Background(), Config{}); err != ErrNotSupported {
		t.Errorf("Run = %v, want ErrNotSupported", err)
	}
}
