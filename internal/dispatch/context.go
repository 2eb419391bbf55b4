package dispatch

import "sync/atomic"

// Modifiers represents modifier key state.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
)

// Has reports whether every modifier in m2 is held in m.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

func (m Modifiers) String() string {
	s := ""
	for _, x := range []struct {
		m    Modifiers
		name string
	}{{ModControl, "ctrl"}, {ModAlt, "alt"}, {ModShift, "shift"}} {
		if m.Has(x.m) {
			if s != "" {
				s += "+"
			}
			s += x.name
		}
	}
	return s
}

// HookContext is the state the keystroke callback carries from one event
// to the next. It is built once at startup and owned by a Dispatcher.
//
// Modifier state is touched only on the source's event thread. The mode and
// shutdown flags are atomics because the tray and overlay read them too.
type HookContext struct {
	mods Modifiers

	// shiftCombined is set when a non-shift key went down while shift was
	// held. A shift release with it set is not a mode toggle.
	shiftCombined bool

	intercepting atomic.Bool
	shutdown     atomic.Bool
}

// NewHookContext creates a context in the given mode.
func NewHookContext(intercepting bool) *HookContext {
	c := &HookContext{}
	c.intercepting.Store(intercepting)
	return c
}

// Modifiers returns the held modifiers.
func (c *HookContext) Modifiers() Modifiers { return c.mods }

func (c *HookContext) set(m Modifiers, down bool) {
	if down {
		c.mods |= m
	} else {
		c.mods &^= m
	}
}

// shiftDown records a shift press. Auto-repeat presses keep the combined
// flag so a held shift cannot turn a combo back into a tap.
func (c *HookContext) shiftDown() {
	if !c.mods.Has(ModShift) {
		c.shiftCombined = false
	}
	c.mods |= ModShift
}

// shiftUp records a shift release and reports whether it ended a solitary
// tap.
func (c *HookContext) shiftUp() bool {
	solitary := c.mods.Has(ModShift) && !c.shiftCombined
	c.mods &^= ModShift
	c.shiftCombined = false
	return solitary
}

// otherKeyDown arms the combined flag when shift is held.
func (c *HookContext) otherKeyDown() {
	if c.mods.Has(ModShift) {
		c.shiftCombined = true
	}
}

// ShiftCombined reports whether the current shift press has been combined
// with another key.
func (c *HookContext) ShiftCombined() bool { return c.shiftCombined }

// Intercepting reports the mode.
func (c *HookContext) Intercepting() bool { return c.intercepting.Load() }

// setIntercepting stores the mode and reports whether it changed.
func (c *HookContext) setIntercepting(v bool) bool {
	return c.intercepting.Swap(v) != v
}

// toggle flips the mode and returns the new value.
func (c *HookContext) toggle() bool {
	for {
		old := c.intercepting.Load()
		if c.intercepting.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// ShuttingDown reports whether the quit hotkey was pressed.
func (c *HookContext) ShuttingDown() bool { return c.shutdown.Load() }

func (c *HookContext) requestShutdown() { c.shutdown.Store(true) }
