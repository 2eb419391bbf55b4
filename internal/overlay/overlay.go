// Package overlay shows the composition state and, when focused, offers a
// typing pad that accumulates text on the clipboard.
package overlay

import (
	"context"
	"sync/atomic"

	"ucliu/internal/ime"
)

// Overlay is the candidate display.
type Overlay interface {
	// Visible reports whether the overlay is shown. While it is, the
	// dispatcher leaves keys alone so the overlay can take them.
	Visible() bool
	// HasFocus reports whether the overlay holds keyboard focus.
	HasFocus() bool
	// Toggle shows or hides the overlay.
	Toggle()
	// Run drives the overlay until ctx is done.
	Run(ctx context.Context) error
}

// SnapshotFunc returns the state to display.
type SnapshotFunc func() ime.Snapshot

// Dirty is a coalescing redraw flag with one writer and one reader.
type Dirty struct {
	v atomic.Bool
}

// Mark requests a redraw.
func (d *Dirty) Mark() { d.v.Store(true) }

// Take reports whether a redraw was requested and resets the flag.
func (d *Dirty) Take() bool { return d.v.Swap(false) }

// visibility is the show/focus state shared by the overlays.
type visibility struct {
	shown   atomic.Bool
	focused atomic.Bool
}

func (v *visibility) Visible() bool { return v.shown.Load() }
func (v *visibility) HasFocus() bool { return v.shown.Load() && v.focused.Load() }

// flip toggles the shown state and returns the new value.
func (v *visibility) flip() bool {
	for {
		old := v.shown.Load()
		if v.shown.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Hidden is an overlay that never shows anything.
type Hidden struct{}

func (Hidden) Visible() bool { return false }
func (Hidden) HasFocus() bool { return false }
func (Hidden) Toggle() {}

// Run blocks until ctx is done.
func (Hidden) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
