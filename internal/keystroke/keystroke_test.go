package keystroke

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Tests for BaseSource
// =============================================================================

func TestBaseSourceLifecycle(t *testing.T) {
	var b BaseSource

	select {
	case <-b.Done():
	default:
		t.Error("Done should be closed before the source starts")
	}

	if err := b.begin(HandlerFunc(func(Event) Verdict { return Pass })); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !b.IsRunning() {
		t.Error("expected running after begin")
	}
	if err := b.begin(nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second begin = %v, want ErrAlreadyRunning", err)
	}

	done := b.Done()
	b.end()
	b.end()
	select {
	case <-done:
	default:
		t.Error("Done not closed after end")
	}
	if b.IsRunning() {
		t.Error("still running after end")
	}
}

func TestBaseSourceDispatchCounts(t *testing.T) {
	var b BaseSource
	b.begin(HandlerFunc(func(ev Event) Verdict {
		if ev.VK == VKA {
			return Consume
		}
		return Pass
	}))

	if v := b.dispatch(Event{VK: VKA, Down: true}); v != Consume {
		t.Errorf("verdict = %v, want consume", v)
	}
	b.dispatch(Event{VK: VKSpace, Down: true})
	b.dispatch(Event{VK: VKV, Down: true, Injected: true})

	st := b.Stats()
	if st.Seen != 3 || st.Consumed != 1 || st.Injected != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDispatchWithoutHandlerPasses(t *testing.T) {
	var b BaseSource
	if v := b.dispatch(Event{VK: VKA, Down: true}); v != Pass {
		t.Errorf("verdict = %v, want pass", v)
	}
}

// =============================================================================
// Tests for Simulated
// =============================================================================

func TestSimulatedFeedsHandler(t *testing.T) {
	sim := NewSimulated()
	var got []uint16
	h := HandlerFunc(func(ev Event) Verdict {
		if ev.Down {
			got = append(got, ev.VK)
		}
		return Consume
	})
	if err := sim.Start(context.Background(), h); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sim.Stop()

	verdicts, err := sim.Type("ab 1.")
	if err != nil {
		t.Fatalf("Type: %v", err)
	}
	want := []uint16{VKA, VKA + 1, VKSpace, VK0 + 1, VKPeriod}
	if len(got) != len(want) {
		t.Fatalf("handler saw %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %#x, want %#x", i, got[i], want[i])
		}
		if verdicts[i] != Consume {
			t.Errorf("verdict %d = %v", i, verdicts[i])
		}
	}
	if n := len(sim.Records()); n != 10 {
		t.Errorf("records = %d, want 10", n)
	}

	if _, err := sim.Type("é"); err == nil {
		t.Error("Type accepted a character without a key")
	}
}

func TestSimulatedStopsOnCancel(t *testing.T) {
	sim := NewSimulated()
	ctx, cancel := context.WithCancel(context.Background())
	if err := sim.Start(ctx, HandlerFunc(func(Event) Verdict { return Consume })); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sim.Start(ctx, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not stop after cancel")
	}
	if v := sim.Down(VKA); v != Pass {
		t.Errorf("stopped source verdict = %v, want pass", v)
	}
}

func TestSimulatedChord(t *testing.T) {
	sim := NewSimulated()
	var mu sync.Mutex
	var seen []Event
	sim.Start(context.Background(), HandlerFunc(func(ev Event) Verdict {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
		return Pass
	}))
	defer sim.Stop()

	sim.Chord(VKLControl, VKSpace)
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("chord produced %d events, want 4", len(seen))
	}
	if seen[0].VK != VKLControl || !seen[0].Down || seen[3].VK != VKLControl || seen[3].Down {
		t.Errorf("modifier not wrapped around key: %+v", seen)
	}
}

// =============================================================================
// Tests for key helpers
// =============================================================================

func TestKeyClasses(t *testing.T) {
	for _, vk := range []uint16{VKShift, VKLShift, VKRShift} {
		if !IsShift(vk) {
			t.Errorf("IsShift(%#x) = false", vk)
		}
	}
	for _, vk := range []uint16{VKControl, VKLControl, VKRControl} {
		if !IsControl(vk) {
			t.Errorf("IsControl(%#x) = false", vk)
		}
	}
	for _, vk := range []uint16{VKMenu, VKLMenu, VKRMenu} {
		if !IsAlt(vk) {
			t.Errorf("IsAlt(%#x) = false", vk)
		}
	}
	if Letter(VKA+2) != 'c' || !IsLetter(VKZ) || IsLetter(VK9) {
		t.Error("letter helpers wrong")
	}
	if Digit(VK0+7) != 7 || !IsDigit(VK0) || IsDigit(VKA) {
		t.Error("digit helpers wrong")
	}
	for vk, want := range map[uint16]byte{VKPeriod: '.', VKDecimal: '.', VKComma: ','} {
		if got, ok := Symbol(vk); !ok || got != want {
			t.Errorf("Symbol(%#x) = %q, %v", vk, got, ok)
		}
	}
	if _, ok := Symbol(VKA); ok {
		t.Error("Symbol(A) resolved")
	}
}

func TestKeyName(t *testing.T) {
	tests := map[uint16]string{
		VKA:        "a",
		VK0 + 5:    "5",
		VKF4:       "f4",
		VKSpace:    "space",
		VKLControl: "ctrl",
		VKRShift:   "shift",
		VKNext:     "pagedown",
		VKSnapshot: "printscreen",
		VKLWin:     "lwin",
		0xFE:       "vk0xfe",
	}
	for vk, want := range tests {
		if got := KeyName(vk); got != want {
			t.Errorf("KeyName(%#x) = %q, want %q", vk, got, want)
		}
	}
}

// =============================================================================
// Tests for hotkeys
// =============================================================================

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		in   string
		want Hotkey
	}{
		{"f4", Hotkey{VK: VKF4}},
		{"F4", Hotkey{VK: VKF4}},
		{"ctrl+space", Hotkey{Ctrl: true, VK: VKSpace}},
		{" Control + Space ", Hotkey{Ctrl: true, VK: VKSpace}},
		{"alt+shift+k", Hotkey{Alt: true, Shift: true, VK: VKA + 10}},
		{"pagedown", Hotkey{VK: VKNext}},
		{"f24", Hotkey{VK: VKF24}},
		{"ctrl+.", Hotkey{Ctrl: true, VK: VKPeriod}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHotkey(tt.in)
			if err != nil {
				t.Fatalf("ParseHotkey(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseHotkey(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHotkeyErrors(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "hyper+a", "f25", "f0", "ctrl+shift", "nosuchkey"} {
		if _, err := ParseHotkey(in); err == nil {
			t.Errorf("ParseHotkey(%q) succeeded", in)
		}
	}
}

func TestHotkeyMatches(t *testing.T) {
	overlay := MustParseHotkey("ctrl+space")
	if !overlay.Matches(VKSpace, true, false, false) {
		t.Error("ctrl+space did not match")
	}
	if !overlay.Matches(VKSpace, true, true, false) {
		t.Error("extra modifier should be ignored")
	}
	if overlay.Matches(VKSpace, false, false, false) {
		t.Error("matched without ctrl")
	}
	if overlay.Matches(VKReturn, true, false, false) {
		t.Error("matched wrong key")
	}

	quit := MustParseHotkey("f4")
	if !quit.Matches(VKF4, true, true, true) {
		t.Error("f4 should match with any modifiers")
	}
	if (Hotkey{}).Matches(0, false, false, false) {
		t.Error("zero hotkey matched")
	}
}

func TestHotkeyTextRoundTrip(t *testing.T) {
	for _, in := range []string{"f4", "ctrl+space", "ctrl+alt+shift+z", "pageup"} {
		var hk Hotkey
		if err := hk.UnmarshalText([]byte(in)); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", in, err)
		}
		out, _ := hk.MarshalText()
		if string(out) != in {
			t.Errorf("round trip %q -> %q", in, out)
		}
	}
	var hk Hotkey
	if err := hk.UnmarshalText([]byte("bogus+a")); err == nil {
		t.Error("UnmarshalText accepted bogus modifier")
	}
}

func TestVKForRune(t *testing.T) {
	tests := map[rune]uint16{
		'a': VKA, 'Z': VKZ, '3': VK0 + 3, ' ': VKSpace, '\n': VKReturn,
		'\b': VKBack, '.': VKPeriod, ',': VKComma, 0x1b: VKEscape,
	}
	for r, want := range tests {
		if got, ok := VKForRune(r); !ok || got != want {
			t.Errorf("VKForRune(%q) = %#x, %v; want %#x", r, got, ok, want)
		}
	}
	if _, ok := VKForRune('/'); ok {
		t.Error("VKForRune('/') resolved")
	}
}
