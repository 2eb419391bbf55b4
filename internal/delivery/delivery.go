// Package delivery hands resolved candidates to the focused application.
//
// The usual path is Paste: the text goes on the clipboard and a synthesized
// Ctrl+V pastes it. That works in programs that ignore composition messages
// and read raw keyboard input. On Linux the IBus engine in package keystroke
// commits text directly and also satisfies Deliverer.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"ucliu/internal/logging"
	"ucliu/internal/metrics"
)

// Deliverer sends text to whatever has keyboard focus.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, text string) error

// Deliver calls f(ctx, text).
func (f DelivererFunc) Deliver(ctx context.Context, text string) error { return f(ctx, text) }

// DefaultSettleDelay is how long the clipboard is given before the paste chord.
const DefaultSettleDelay = 10 * time.Millisecond

var (
	// ErrEmptyText is returned for an empty delivery.
	ErrEmptyText = errors.New("nothing to deliver")

	// ErrNoInjector is returned when keystrokes cannot be synthesized here.
	ErrNoInjector = errors.New("keystroke injection not available on this platform")
)

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard returns the OS clipboard.
func SystemClipboard() Clipboard { return systemClipboard{} }

// Injector synthesizes the paste chord.
type Injector interface {
	PasteChord() error
}

// Options configures Paste.
type Options struct {
	SettleDelay time.Duration
	// RestoreClipboard puts the previous clipboard text back after pasting.
	RestoreClipboard bool
	// RestoreDelay is how long to wait before restoring.
	RestoreDelay time.Duration
}

// Paste delivers text through the clipboard and a Ctrl+V chord.
type Paste struct {
	clip     Clipboard
	injector Injector
	opts     Options

	mu sync.Mutex
}

// NewPaste creates a Paste. A nil injector leaves the text on the clipboard
// and reports ErrNoInjector.
func NewPaste(clip Clipboard, injector Injector, opts Options) *Paste {
	if clip == nil {
		clip = SystemClipboard()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.RestoreDelay <= 0 {
		opts.RestoreDelay = 100 * time.Millisecond
	}
	return &Paste{clip: clip, injector: injector, opts: opts}
}

// New returns the clipboard-and-paste deliverer for this platform.
func New(opts Options) *Paste {
	return NewPaste(SystemClipboard(), platformInjector(), opts)
}

// Deliver implements Deliverer.
func (p *Paste) Deliver(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Two overlapping pastes would race on the clipboard.
	p.mu.Lock()
	defer p.mu.Unlock()

	var previous string
	if p.opts.RestoreClipboard {
		previous, _ = p.clip.ReadAll()
	}
	if err := p.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if p.injector == nil {
		return ErrNoInjector
	}
	if err := sleep(ctx, p.opts.SettleDelay); err != nil {
		return err
	}
	if err := p.injector.PasteChord(); err != nil {
		return fmt.Errorf("send paste chord: %w", err)
	}

	if p.opts.RestoreClipboard {
		if err := sleep(ctx, p.opts.RestoreDelay); err != nil {
			return nil
		}
		if err := p.clip.WriteAll(previous); err != nil {
			return fmt.Errorf("restore clipboard: %w", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recorder collects delivered text instead of sending it anywhere.
type Recorder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Deliver records text and returns the forced error, if any. Failed
// deliveries are not recorded.
func (r *Recorder) Deliver(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

// FailWith makes subsequent deliveries fail with err. nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Texts returns a copy of everything delivered so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// Last returns the most recent delivery.
func (r *Recorder) Last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return "", false
	}
	return r.texts[len(r.texts)-1], true
}

// Reset forgets recorded text.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.texts = nil
	r.mu.Unlock()
}

// Instrumented wraps a Deliverer with metrics and failure logging.
type Instrumented struct {
	next    Deliverer
	metrics *metrics.IMEMetrics
	log     *slog.Logger
}

// Instrument wraps next. m and logger may be nil.
func Instrument(next Deliverer, m *metrics.IMEMetrics, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = logging.WithComponent("delivery")
	}
	return &Instrumented{next: next, metrics: m, log: logger}
}

// Deliver implements Deliverer.
func (d *Instrumented) Deliver(ctx context.Context, text string) error {
	start := time.Now()
	err := d.next.Deliver(ctx, text)
	took := time.Since(start)
	if d.metrics != nil {
		d.metrics.RecordDelivery(took, err)
	}
	if err != nil {
		d.log.Warn("delivery failed", "runes", len([]rune(text)), "error", err)
		return err
	}
	d.log.Debug("delivered", "runes", len([]rune(text)), "took", took)
	return nil
}
