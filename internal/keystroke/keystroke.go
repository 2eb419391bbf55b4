// Package keystroke delivers keyboard events from the operating system to a
// Handler and applies the handler's verdict.
//
// Platform support:
//   - Windows: WH_KEYBOARD_LL hook on a dedicated, locked OS thread
//   - Linux: IBus engine exported on the session bus
//   - Everywhere: Simulated, a scripted source used by tests and the try command
//
// Each platform has exactly one raw adapter that turns the native event into
// an Event. Handlers never see native structures.
package keystroke

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event is one key transition.
type Event struct {
	VK       uint16 // Windows virtual-key code, also used on other platforms
	ScanCode uint32
	Down     bool
	// Injected is set for events synthesized by software, including our own
	// paste keystrokes.
	Injected bool
	Extended bool
	// Rune is the character the key produces, when the platform knows it.
	Rune rune
	Time time.Time
}

// Up reports whether the event is a key release.
func (e Event) Up() bool { return !e.Down }

// Verdict tells the source what to do with an event.
type Verdict int

const (
	// Pass forwards the event to the focused application.
	Pass Verdict = iota
	// Consume swallows the event.
	Consume
)

func (v Verdict) String() string {
	if v == Consume {
		return "consume"
	}
	return "pass"
}

// Handler classifies events. HandleKey runs on the source's event thread and
// must return quickly.
type Handler interface {
	HandleKey(Event) Verdict
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event) Verdict

// HandleKey calls f(ev).
func (f HandlerFunc) HandleKey(ev Event) Verdict { return f(ev) }

// Source produces keyboard events.
type Source interface {
	// Start installs the source and begins calling h. It returns once the
	// source is installed; events keep flowing until ctx is cancelled or
	// Stop is called.
	Start(ctx context.Context, h Handler) error

	// Stop uninstalls the source.
	Stop() error

	// Done is closed once the source has stopped delivering events.
	Done() <-chan struct{}

	// Available reports whether the source can run here, with a reason when
	// it cannot.
	Available() (bool, string)
}

// Stats counts events seen by a source.
type Stats struct {
	Seen     uint64
	Consumed uint64
	Injected uint64
}

// BaseSource provides the bookkeeping shared by platform sources.
type BaseSource struct {
	mu      sync.RWMutex
	running bool
	handler Handler
	stats   Stats
	done    chan struct{}
}

// begin marks the source running with h. It fails if already running.
func (b *BaseSource) begin(h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}
	b.running = true
	b.handler = h
	b.done = make(chan struct{})
	return nil
}

// end marks the source stopped and closes Done. It is idempotent.
func (b *BaseSource) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	b.handler = nil
	close(b.done)
}

// Done returns a channel closed once the source stops.
func (b *BaseSource) Done() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return b.done
}

// IsRunning returns the running state.
func (b *BaseSource) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Stats returns a copy of the event counters.
func (b *BaseSource) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// dispatch hands ev to the handler and records the outcome. Without a
// handler every event passes.
func (b *BaseSource) dispatch(ev Event) Verdict {
	b.mu.Lock()
	h := b.handler
	b.stats.Seen++
	if ev.Injected {
		b.stats.Injected++
	}
	b.mu.Unlock()

	if h == nil {
		return Pass
	}
	v := h.HandleKey(ev)
	if v == Consume {
		b.mu.Lock()
		b.stats.Consumed++
		b.mu.Unlock()
	}
	return v
}

// New creates the keyboard source for the current platform.
func New() Source {
	return newPlatformSource()
}

var (
	// ErrNotAvailable is returned when no keyboard source exists for this
	// platform or session.
	ErrNotAvailable = errors.New("keyboard interception not available on this platform")

	// ErrAlreadyRunning is returned by Start on a running source.
	ErrAlreadyRunning = errors.New("keyboard source already running")

	// ErrHookRefused is returned when the OS rejects the hook registration.
	ErrHookRefused = errors.New("keyboard hook registration refused")
)

// InjectedMarker tags keystrokes synthesized by this program in the
// dwExtraInfo field so the hook can recognize them even if the injected flag
// is lost.
const InjectedMarker uintptr = 0x55434C49
