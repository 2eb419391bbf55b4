package keystroke

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Record is one event fed through a Simulated source and its verdict.
type Record struct {
	Event   Event
	Verdict Verdict
}

// Simulated is a scripted keyboard source. Events are fed synchronously on
// the caller's goroutine, which stands in for the hook thread.
type Simulated struct {
	BaseSource

	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// NewSimulated creates a simulated source.
func NewSimulated() *Simulated {
	return &Simulated{now: time.Now}
}

// Start installs h. The source stops when ctx is cancelled.
func (s *Simulated) Start(ctx context.Context, h Handler) error {
	if err := s.begin(h); err != nil {
		return err
	}
	done := s.Done()
	go func() {
		select {
		case <-ctx.Done():
			s.end()
		case <-done:
		}
	}()
	return nil
}

// Stop uninstalls the handler.
func (s *Simulated) Stop() error {
	s.end()
	return nil
}

// Available always reports true.
func (s *Simulated) Available() (bool, string) {
	return true, "simulated keyboard"
}

// Feed sends one event and returns the verdict.
func (s *Simulated) Feed(ev Event) Verdict {
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}
	v := s.dispatch(ev)
	s.mu.Lock()
	s.records = append(s.records, Record{Event: ev, Verdict: v})
	s.mu.Unlock()
	return v
}

// Down feeds a key press.
func (s *Simulated) Down(vk uint16) Verdict {
	return s.Feed(Event{VK: vk, Down: true})
}

// Up feeds a key release.
func (s *Simulated) Up(vk uint16) Verdict {
	return s.Feed(Event{VK: vk})
}

// Tap feeds a press and a release of vk.
func (s *Simulated) Tap(vk uint16) (down, up Verdict) {
	return s.Down(vk), s.Up(vk)
}

// Chord holds mod while tapping vk.
func (s *Simulated) Chord(mod, vk uint16) (down, up Verdict) {
	s.Down(mod)
	down, up = s.Tap(vk)
	s.Up(mod)
	return down, up
}

// Type taps the key for each character of text and returns the key-down
// verdicts. It fails on characters without a key.
func (s *Simulated) Type(text string) ([]Verdict, error) {
	var out []Verdict
	for _, r := range text {
		vk, ok := VKForRune(r)
		if !ok {
			return out, fmt.Errorf("no key for %q", r)
		}
		d := s.Feed(Event{VK: vk, Down: true, Rune: r})
		s.Feed(Event{VK: vk, Rune: r})
		out = append(out, d)
	}
	return out, nil
}

// Records returns everything fed so far.
func (s *Simulated) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Reset forgets recorded events.
func (s *Simulated) Reset() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}
