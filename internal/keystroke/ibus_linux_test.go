//go:build linux

package keystroke

import "testing"

func TestKeysymToVK(t *testing.T) {
	tests := []struct {
		keysym uint32
		want   uint16
	}{
		{'a', VKA},
		{'Q', VKA + 16},
		{'7', VK0 + 7},
		{' ', VKSpace},
		{'.', VKPeriod},
		{',', VKComma},
		{xkBackSpace, VKBack},
		{xkReturn, VKReturn},
		{xkKPEnter, VKReturn},
		{xkEscape, VKEscape},
		{xkShiftL, VKLShift},
		{xkControlR, VKRControl},
		{xkAltL, VKLMenu},
		{xkKPDecimal, VKDecimal},
		{xkPrior, VKPrior},
		{xkF1 + 3, VKF4},
		{'/', 0},
		{0x1234, 0},
	}
	for _, tt := range tests {
		if got := keysymToVK(tt.keysym); got != tt.want {
			t.Errorf("keysymToVK(%#x) = %#x, want %#x", tt.keysym, got, tt.want)
		}
	}
}

func TestKeysymToRune(t *testing.T) {
	if r := keysymToRune('a'); r != 'a' {
		t.Errorf("keysymToRune('a') = %q", r)
	}
	if r := keysymToRune(0x01000000 + 0x4e2d); r != '中' {
		t.Errorf("unicode keysym = %q", r)
	}
	if r := keysymToRune(xkShiftL); r != 0 {
		t.Errorf("keysymToRune(Shift_L) = %q", r)
	}
}

func TestProcessKeyEventReleaseMask(t *testing.T) {
	e := NewIBus(IBusConfig{})
	var got []Event
	e.begin(HandlerFunc(func(ev Event) Verdict {
		got = append(got, ev)
		if ev.VK == VKA {
			return Consume
		}
		return Pass
	}))

	consumed, derr := e.ProcessKeyEvent('a', 30, 0)
	if derr != nil || !consumed {
		t.Errorf("press a = %v, %v", consumed, derr)
	}
	consumed, _ = e.ProcessKeyEvent('a', 30, IBusReleaseMask)
	if !consumed {
		t.Error("release a not consumed")
	}
	consumed, _ = e.ProcessKeyEvent('/', 61, 0)
	if consumed {
		t.Error("slash consumed")
	}
	if len(got) != 3 || !got[0].Down || got[1].Down {
		t.Errorf("events = %+v", got)
	}
}
