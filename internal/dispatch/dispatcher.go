// Package dispatch classifies every keystroke the OS reports.
//
// The Dispatcher is called synchronously on the keyboard source's event
// thread. Per event it picks the first matching rule:
//
//  1. injected events pass untouched
//  2. the quit hotkey requests shutdown, in any mode
//  3. control and alt are recorded and passed
//  4. the overlay hotkey toggles the overlay
//  5. shift is recorded and swallowed; a solitary tap flips the mode
//  6. in pass-through mode everything else passes
//  7. keys pressed with control held pass
//  8. releases pass
//  9. while the overlay is visible keys pass, so it can take them
//  10. the key is routed into the composition, or swallowed
//
// Text resolved in step 10 is delivered after the composition lock is
// released. The key is consumed whether or not delivery succeeds.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ucliu/internal/delivery"
	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
	"ucliu/internal/logging"
	"ucliu/internal/metrics"
	"ucliu/internal/overlay"
)

// Hotkeys are the global key bindings.
type Hotkeys struct {
	Quit     keystroke.Hotkey
	Overlay  keystroke.Hotkey
	NextPage keystroke.Hotkey
	PrevPage keystroke.Hotkey
}

// DefaultHotkeys returns the stock bindings.
func DefaultHotkeys() Hotkeys {
	return Hotkeys{
		Quit:     keystroke.MustParseHotkey("f4"),
		Overlay:  keystroke.MustParseHotkey("ctrl+space"),
		NextPage: keystroke.MustParseHotkey("pagedown"),
		PrevPage: keystroke.MustParseHotkey("pageup"),
	}
}

// Options configures a Dispatcher.
type Options struct {
	Dictionary   ime.Dictionary
	Deliverer    delivery.Deliverer
	Overlay      overlay.Overlay
	Dirty        *overlay.Dirty
	Hotkeys      Hotkeys
	Intercepting bool

	// Context bounds deliveries. Defaults to context.Background.
	Context context.Context

	// OnQuit runs on the event thread when the quit hotkey is pressed. It
	// must not block; stopping the keyboard source is the usual choice.
	OnQuit func()
	// OnModeChange runs after every mode change.
	OnModeChange func(intercepting bool)

	Metrics *metrics.IMEMetrics
	Logger  *slog.Logger
}

// Dispatcher implements keystroke.Handler.
type Dispatcher struct {
	hc      *HookContext
	log     *slog.Logger
	metrics *metrics.IMEMetrics
	dirty   *overlay.Dirty
	ctx     context.Context

	onQuit       func()
	onModeChange func(bool)

	mu        sync.Mutex
	comp      *ime.Composition
	deliverer delivery.Deliverer
	overlay   overlay.Overlay
	hotkeys   Hotkeys
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("dispatch")
	}
	if opts.Dirty == nil {
		opts.Dirty = &overlay.Dirty{}
	}
	if opts.Overlay == nil {
		opts.Overlay = overlay.Hidden{}
	}
	if opts.Deliverer == nil {
		opts.Deliverer = delivery.NewRecorder()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	d := &Dispatcher{
		hc:           NewHookContext(opts.Intercepting),
		log:          logger,
		metrics:      opts.Metrics,
		dirty:        opts.Dirty,
		ctx:          opts.Context,
		onQuit:       opts.OnQuit,
		onModeChange: opts.OnModeChange,
		comp:         ime.NewComposition(opts.Dictionary),
		deliverer:    delivery.Instrument(opts.Deliverer, opts.Metrics, logger),
		overlay:      opts.Overlay,
		hotkeys:      opts.Hotkeys,
	}
	if d.metrics != nil {
		d.metrics.RecordMode(opts.Intercepting, false)
	}
	return d
}

// HandleKey implements keystroke.Handler.
func (d *Dispatcher) HandleKey(ev keystroke.Event) keystroke.Verdict {
	if ev.Injected {
		if d.metrics != nil {
			d.metrics.RecordInjected()
		}
		return keystroke.Pass
	}

	start := time.Now()
	v, text := d.classify(ev)
	took := time.Since(start)

	if text != "" {
		d.mu.Lock()
		dl := d.deliverer
		d.mu.Unlock()
		// Failures are logged and counted by the instrumented deliverer. The
		// composition is already clear and the key stays consumed.
		_ = dl.Deliver(d.ctx, text)
	}
	if d.metrics != nil {
		d.metrics.RecordKey(v == keystroke.Consume, took)
	}
	return v
}

func (d *Dispatcher) classify(ev keystroke.Event) (keystroke.Verdict, string) {
	d.mu.Lock()
	hk := d.hotkeys
	ov := d.overlay
	d.mu.Unlock()

	hc := d.hc
	vk := ev.VK
	mods := hc.Modifiers()
	ctrl, alt, shift := mods.Has(ModControl), mods.Has(ModAlt), mods.Has(ModShift)

	if ev.Down && hk.Quit.Matches(vk, ctrl, alt, shift) {
		hc.requestShutdown()
		d.log.Info("quit hotkey pressed", "hotkey", hk.Quit.String())
		if d.onQuit != nil {
			d.onQuit()
		}
		return keystroke.Consume, ""
	}

	if ev.Down && !keystroke.IsShift(vk) {
		hc.otherKeyDown()
	}
	switch {
	case keystroke.IsControl(vk):
		hc.set(ModControl, ev.Down)
		return keystroke.Pass, ""
	case keystroke.IsAlt(vk):
		hc.set(ModAlt, ev.Down)
		return keystroke.Pass, ""
	}

	if ev.Down && hk.Overlay.Matches(vk, ctrl, alt, shift) {
		ov.Toggle()
		d.dirty.Mark()
		if d.metrics != nil {
			d.metrics.RecordOverlayToggle()
		}
		d.log.Debug("overlay toggled", "visible", ov.Visible())
		return keystroke.Consume, ""
	}

	if keystroke.IsShift(vk) {
		if ev.Down {
			hc.shiftDown()
		} else if hc.shiftUp() {
			d.applyMode(hc.toggle(), true)
		}
		return keystroke.Consume, ""
	}

	switch {
	case !hc.Intercepting():
		return keystroke.Pass, ""
	case ev.Down && ctrl:
		return keystroke.Pass, ""
	case !ev.Down:
		return keystroke.Pass, ""
	case ov.Visible():
		return keystroke.Pass, ""
	}

	d.mu.Lock()
	v, text, changed := d.route(vk, hk, ctrl, alt, shift)
	code := d.comp.Code()
	d.mu.Unlock()

	if changed || text != "" {
		d.dirty.Mark()
	}
	d.log.Debug("key", "key", keystroke.KeyName(vk), "verdict", v, "code", code, "resolved", text != "")
	return v, text
}

// route applies one key to the composition. It returns the verdict, any
// resolved text, and whether the visible state changed. d.mu is held.
func (d *Dispatcher) route(vk uint16, hk Hotkeys, ctrl, alt, shift bool) (keystroke.Verdict, string, bool) {
	c := d.comp
	switch {
	case hk.NextPage.Matches(vk, ctrl, alt, shift):
		return keystroke.Consume, "", c.NextPage()

	case hk.PrevPage.Matches(vk, ctrl, alt, shift):
		return keystroke.Consume, "", c.PrevPage()

	case keystroke.IsLetter(vk):
		return keystroke.Consume, "", c.InputLetter(keystroke.Letter(vk))

	case vk == keystroke.VKSpace, vk == keystroke.VKReturn:
		if c.Empty() {
			return keystroke.Pass, "", false
		}
		// A code with no candidates is discarded, never leaked to the app.
		s, ok := c.ConfirmDefault()
		if !ok {
			c.Clear()
		}
		return keystroke.Consume, s, true

	case vk == keystroke.VKBack:
		if !c.DeleteLast() {
			return keystroke.Pass, "", false
		}
		return keystroke.Consume, "", true

	case vk == keystroke.VKEscape:
		if c.Empty() {
			return keystroke.Pass, "", false
		}
		c.Clear()
		return keystroke.Consume, "", true
	}

	if n, ok := digit(vk); ok {
		s, ok := c.SelectByIndex(n)
		return keystroke.Consume, s, ok
	}
	if sym, ok := keystroke.Symbol(vk); ok {
		return keystroke.Consume, "", c.InputSymbol(sym)
	}
	return keystroke.Consume, "", false
}

// digit maps top-row and numpad digit keys to their value.
func digit(vk uint16) (int, bool) {
	switch {
	case keystroke.IsDigit(vk):
		return keystroke.Digit(vk), true
	case vk >= keystroke.VKNumpad0 && vk <= keystroke.VKNumpad9:
		return int(vk - keystroke.VKNumpad0), true
	}
	return 0, false
}

// applyMode clears the composition after a mode change and notifies
// listeners.
func (d *Dispatcher) applyMode(intercepting, toggled bool) {
	d.mu.Lock()
	d.comp.Clear()
	d.mu.Unlock()

	d.dirty.Mark()
	if d.metrics != nil {
		d.metrics.RecordMode(intercepting, toggled)
	}
	d.log.Info("mode changed", "intercepting", intercepting)
	if d.onModeChange != nil {
		d.onModeChange(intercepting)
	}
}

// Snapshot returns the composition state for display.
func (d *Dispatcher) Snapshot() ime.Snapshot {
	d.mu.Lock()
	s := d.comp.Snapshot()
	d.mu.Unlock()
	s.Intercepting = d.hc.Intercepting()
	return s
}

// Intercepting reports whether keys are being intercepted.
func (d *Dispatcher) Intercepting() bool { return d.hc.Intercepting() }

// SetIntercepting sets the mode, as if toggled from the tray.
func (d *Dispatcher) SetIntercepting(v bool) {
	if d.hc.setIntercepting(v) {
		d.applyMode(v, true)
	}
}

// ToggleMode flips the mode and returns the new value.
func (d *Dispatcher) ToggleMode() bool {
	v := d.hc.toggle()
	d.applyMode(v, true)
	return v
}

// ShuttingDown reports whether the quit hotkey was pressed.
func (d *Dispatcher) ShuttingDown() bool { return d.hc.ShuttingDown() }

// Apply replaces the hotkeys.
func (d *Dispatcher) Apply(hk Hotkeys) {
	d.mu.Lock()
	d.hotkeys = hk
	d.mu.Unlock()
	d.log.Info("hotkeys applied", "quit", hk.Quit.String(), "overlay", hk.Overlay.String())
}

// Hotkeys returns the current bindings.
func (d *Dispatcher) Hotkeys() Hotkeys {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hotkeys
}

// SetDictionary swaps the dictionary and clears the composition.
func (d *Dispatcher) SetDictionary(dict ime.Dictionary) {
	d.mu.Lock()
	d.comp.SetDictionary(dict)
	d.mu.Unlock()
	d.dirty.Mark()
}

// SetOverlay replaces the overlay. Overlays usually need the dispatcher's
// Snapshot, so they are attached after New.
func (d *Dispatcher) SetOverlay(o overlay.Overlay) {
	if o == nil {
		o = overlay.Hidden{}
	}
	d.mu.Lock()
	d.overlay = o
	d.mu.Unlock()
}

// SetDeliverer replaces the deliverer.
func (d *Dispatcher) SetDeliverer(dl delivery.Deliverer) {
	d.mu.Lock()
	d.deliverer = delivery.Instrument(dl, d.metrics, d.log)
	d.mu.Unlock()
}

// Context returns the hook context.
func (d *Dispatcher) Context() *HookContext { return d.hc }
