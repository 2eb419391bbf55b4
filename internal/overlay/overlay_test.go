package overlay

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gioui.org/io/key"

	"ucliu/internal/dictionary"
	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
)

type memClipboard struct {
	text   string
	writes int
}

func (c *memClipboard) ReadAll() (string, error) { return c.text, nil }

func (c *memClipboard) WriteAll(s string) error {
	c.text = s
	c.writes++
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func down(vk uint16) keystroke.Event { return keystroke.Event{VK: vk, Down: true} }

// =============================================================================
// Dirty / Hidden
// =============================================================================

func TestDirtyCoalesces(t *testing.T) {
	var d Dirty
	if d.Take() {
		t.Fatal("fresh flag should be clear")
	}
	d.Mark()
	d.Mark()
	if !d.Take() {
		t.Error("Take after Mark = false")
	}
	if d.Take() {
		t.Error("second Take should see the cleared flag")
	}
}

func TestHidden(t *testing.T) {
	var o Overlay = Hidden{}
	o.Toggle()
	if o.Visible() || o.HasFocus() {
		t.Error("hidden overlay reports visible")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Run(ctx); err != nil {
		t.Errorf("Run = %v", err)
	}
}

// =============================================================================
// Format
// =============================================================================

func TestFormatPadsWideCandidates(t *testing.T) {
	l := Format(ime.Snapshot{Code: "ab", Candidates: []string{"你", "好好", "x"}, Total: 3})
	if l.Code != "ab" {
		t.Errorf("Code = %q", l.Code)
	}
	if want := "1.你   2.好好 3.x"; l.Candidates != want {
		t.Errorf("Candidates = %q, want %q", l.Candidates, want)
	}
	if l.Status != "pass-through" {
		t.Errorf("Status = %q", l.Status)
	}
}

func TestFormatPendingAndPages(t *testing.T) {
	l := Format(ime.Snapshot{
		Code:         "a",
		Pending:      "乙",
		HasPending:   true,
		Candidates:   []string{"七", "八"},
		Cursor:       6,
		Total:        8,
		Intercepting: true,
	})
	if l.Code != "a → 乙" {
		t.Errorf("Code = %q", l.Code)
	}
	if l.Status != "intercept  2/2" {
		t.Errorf("Status = %q", l.Status)
	}
	if !strings.Contains(l.String(), "1.七") {
		t.Errorf("String() = %q", l.String())
	}
}

func TestLabel(t *testing.T) {
	if Label(0) != "1" || Label(5) != "6" || Label(9) != "0" {
		t.Error("labels do not follow the digit row")
	}
}

// =============================================================================
// Pad
// =============================================================================

func newTestPad() (*Pad, *memClipboard, *Dirty) {
	dict := dictionary.New([]dictionary.Entry{
		{Code: "a", Candidates: []string{"甲", "乙"}},
		{Code: "ab", Candidates: []string{"丙"}},
	})
	clip := &memClipboard{}
	dirty := &Dirty{}
	return NewPad(dict, clip, dirty, quiet()), clip, dirty
}

func TestPadAccumulates(t *testing.T) {
	p, clip, dirty := newTestPad()

	steps := []struct {
		ev   keystroke.Event
		ctrl bool
		want keystroke.Verdict
	}{
		{down(keystroke.VKA), false, keystroke.Consume},
		{down(keystroke.VKSpace), false, keystroke.Consume},
		{down(keystroke.VKA), false, keystroke.Consume},
		{down(keystroke.VK0 + 2), false, keystroke.Consume},
		{down(keystroke.VK0 + 5), false, keystroke.Consume},
		{down(keystroke.VKSpace), false, keystroke.Pass},
		{down(keystroke.VKBack), false, keystroke.Pass},
		{keystroke.Event{VK: keystroke.VKA}, false, keystroke.Pass},
	}
	for i, s := range steps {
		if got := p.HandleKey(s.ev, s.ctrl); got != s.want {
			t.Fatalf("step %d (%s): verdict %v, want %v", i, keystroke.KeyName(s.ev.VK), got, s.want)
		}
	}
	if p.Text() != "甲乙" {
		t.Errorf("Text = %q, want 甲乙", p.Text())
	}
	if clip.text != "甲乙" {
		t.Errorf("clipboard = %q, want 甲乙", clip.text)
	}
	if !dirty.Take() {
		t.Error("pad did not mark dirty")
	}
}

func TestPadClipboardChords(t *testing.T) {
	p, clip, _ := newTestPad()

	if v := p.HandleKey(down(keystroke.VKV), true); v != keystroke.Pass {
		t.Errorf("ctrl+v with nothing accumulated = %v, want pass", v)
	}
	p.HandleKey(down(keystroke.VKA), false)
	p.HandleKey(down(keystroke.VKSpace), false)
	writes := clip.writes

	clip.text = "something else"
	if v := p.HandleKey(down(keystroke.VKV), true); v != keystroke.Consume {
		t.Errorf("ctrl+v = %v, want consume", v)
	}
	if clip.text != "甲" || clip.writes != writes+1 {
		t.Errorf("ctrl+v did not re-copy: %q after %d writes", clip.text, clip.writes)
	}

	if v := p.HandleKey(down(keystroke.VKC), true); v != keystroke.Consume {
		t.Errorf("ctrl+c = %v, want consume", v)
	}
	if p.Text() != "" {
		t.Errorf("ctrl+c left %q", p.Text())
	}
	if v := p.HandleKey(down(keystroke.VKC), true); v != keystroke.Pass {
		t.Errorf("ctrl+c on empty = %v, want pass", v)
	}
	if v := p.HandleKey(down(keystroke.VKZ), true); v != keystroke.Pass {
		t.Errorf("other ctrl chord = %v, want pass", v)
	}
}

func TestPadEnterEscapeAndDirectText(t *testing.T) {
	p, _, _ := newTestPad()

	if v := p.HandleKey(down(keystroke.VKReturn), false); v != keystroke.Pass {
		t.Errorf("enter with nothing accumulated = %v, want pass", v)
	}

	p.HandleKey(keystroke.Event{Rune: '！', Down: true}, false)
	if p.Text() != "！" {
		t.Errorf("direct text = %q", p.Text())
	}

	p.HandleKey(down(keystroke.VKA), false)
	p.HandleKey(down(keystroke.VKEscape), false)
	if s := p.Snapshot(); s.Code != "" {
		t.Errorf("escape left code %q", s.Code)
	}
	if p.Text() != "！" {
		t.Errorf("escape touched accumulated text: %q", p.Text())
	}

	if v := p.HandleKey(down(keystroke.VKReturn), false); v != keystroke.Consume {
		t.Errorf("enter = %v, want consume", v)
	}
	if p.Text() != "" {
		t.Errorf("enter left %q", p.Text())
	}
}

func TestPadSpaceDiscardsUnresolvedCode(t *testing.T) {
	p, clip, _ := newTestPad()
	p.HandleKey(down(keystroke.VKZ), false)

	if v := p.HandleKey(down(keystroke.VKSpace), false); v != keystroke.Consume {
		t.Errorf("space on unresolved code = %v, want consume", v)
	}
	if s := p.Snapshot(); s.Code != "" {
		t.Errorf("space left code %q", s.Code)
	}
	if p.Text() != "" || clip.writes != 0 {
		t.Errorf("unresolved code produced text %q (%d writes)", p.Text(), clip.writes)
	}
	if v := p.HandleKey(down(keystroke.VKSpace), false); v != keystroke.Pass {
		t.Errorf("space when idle = %v, want pass", v)
	}
}

func TestPadSnapshotAndReset(t *testing.T) {
	p, _, _ := newTestPad()
	p.HandleKey(down(keystroke.VKA), false)
	s := p.Snapshot()
	if s.Code != "a" || len(s.Candidates) != 2 || !s.Intercepting {
		t.Errorf("snapshot = %+v", s)
	}
	p.Reset()
	if s := p.Snapshot(); s.Code != "" {
		t.Errorf("Reset left %q", s.Code)
	}
}

// =============================================================================
// Console
// =============================================================================

func TestConsoleRedraw(t *testing.T) {
	var buf bytes.Buffer
	snap := ime.Snapshot{Code: "ab", Candidates: []string{"丙"}, Total: 1, Intercepting: true}
	c := NewConsole(&buf, func() ime.Snapshot { return snap }, nil)

	if c.Visible() || c.HasFocus() {
		t.Error("console must never claim keys")
	}
	if err := c.Redraw(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "ab") || !strings.Contains(out, "1.丙") || !strings.Contains(out, "intercept") {
		t.Errorf("output = %q", out)
	}

	n := buf.Len()
	c.Redraw()
	if buf.Len() != n {
		t.Error("unchanged state was drawn twice")
	}

	c.Toggle()
	if c.Shown() {
		t.Error("Toggle did not hide")
	}
	c.Redraw()
	if buf.Len() != n {
		t.Error("hidden console wrote output")
	}
}

func TestConsoleRunStops(t *testing.T) {
	var buf bytes.Buffer
	d := &Dirty{}
	c := NewConsole(&buf, func() ime.Snapshot { return ime.Snapshot{Code: "x"} }, d)
	d.Mark()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if !strings.Contains(buf.String(), "x") {
		t.Errorf("marked state was not drawn: %q", buf.String())
	}
}

// =============================================================================
// Window key translation
// =============================================================================

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		ev     key.Event
		vk     uint16
		r      rune
		wantOK bool
	}{
		{key.Event{Name: "A"}, keystroke.VKA, 'a', true},
		{key.Event{Name: "A", Modifiers: key.ModShift}, keystroke.VKA, 'A', true},
		{key.Event{Name: "7"}, keystroke.VK0 + 7, '7', true},
		{key.Event{Name: key.NameSpace}, keystroke.VKSpace, 0, true},
		{key.Event{Name: key.NameDeleteBackward}, keystroke.VKBack, 0, true},
		{key.Event{Name: key.NamePageDown}, keystroke.VKNext, 0, true},
		{key.Event{Name: "."}, keystroke.VKPeriod, '.', true},
		{key.Event{Name: key.NameShift}, 0, 0, false},
	}
	for _, tt := range tests {
		ev, ok := translateKey(tt.ev)
		if ok != tt.wantOK {
			t.Errorf("%q: ok = %v", tt.ev.Name, ok)
			continue
		}
		if ok && (ev.VK != tt.vk || ev.Rune != tt.r || !ev.Down) {
			t.Errorf("%q: got vk %#x rune %q", tt.ev.Name, ev.VK, ev.Rune)
		}
	}
}
