package overlay

import (
	"log/slog"
	"sync"
	"unicode"

	"ucliu/internal/delivery"
	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
)

// Pad is the input path used while the overlay has focus. It runs its own
// composition, appends every resolved candidate to an accumulated line and
// keeps that line on the clipboard, ready to be pasted elsewhere by hand.
type Pad struct {
	mu    sync.Mutex
	comp  *ime.Composition
	text  []rune
	clip  delivery.Clipboard
	dirty *Dirty
	log   *slog.Logger
}

// NewPad creates a pad. clip defaults to the system clipboard.
func NewPad(dict ime.Dictionary, clip delivery.Clipboard, dirty *Dirty, logger *slog.Logger) *Pad {
	if clip == nil {
		clip = delivery.SystemClipboard()
	}
	if dirty == nil {
		dirty = &Dirty{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pad{
		comp:  ime.NewComposition(dict),
		clip:  clip,
		dirty: dirty,
		log:   logger,
	}
}

// SetDictionary swaps the dictionary and clears the composition.
func (p *Pad) SetDictionary(dict ime.Dictionary) {
	p.mu.Lock()
	p.comp.SetDictionary(dict)
	p.mu.Unlock()
	p.dirty.Mark()
}

// HandleKey processes one key-down event. ctrl is the control state at the
// time of the event. Pass means the key was not for the pad.
func (p *Pad) HandleKey(ev keystroke.Event, ctrl bool) keystroke.Verdict {
	if !ev.Down {
		return keystroke.Pass
	}

	p.mu.Lock()
	v, copyText := p.handleLocked(ev, ctrl)
	p.mu.Unlock()

	if copyText != "" {
		if err := p.clip.WriteAll(copyText); err != nil {
			p.log.Warn("copy accumulated text", "error", err)
		}
	}
	if v == keystroke.Consume {
		p.dirty.Mark()
	}
	return v
}

func (p *Pad) handleLocked(ev keystroke.Event, ctrl bool) (keystroke.Verdict, string) {
	vk := ev.VK
	if ctrl {
		switch vk {
		case keystroke.VKV:
			if len(p.text) == 0 {
				return keystroke.Pass, ""
			}
			return keystroke.Consume, string(p.text)
		case keystroke.VKC:
			if len(p.text) == 0 {
				return keystroke.Pass, ""
			}
			p.text = p.text[:0]
			return keystroke.Consume, ""
		}
		return keystroke.Pass, ""
	}

	switch {
	case vk == keystroke.VKEscape:
		p.comp.Clear()
		return keystroke.Consume, ""

	case keystroke.IsLetter(vk):
		p.comp.InputLetter(keystroke.Letter(vk))
		return keystroke.Consume, ""

	case keystroke.IsDigit(vk):
		if s, ok := p.comp.SelectByIndex(keystroke.Digit(vk)); ok {
			return keystroke.Consume, p.appendLocked(s)
		}
		return keystroke.Consume, ""

	case vk == keystroke.VKSpace:
		if p.comp.Empty() {
			return keystroke.Pass, ""
		}
		if s, ok := p.comp.ConfirmDefault(); ok {
			return keystroke.Consume, p.appendLocked(s)
		}
		p.comp.Clear()
		return keystroke.Consume, ""

	case vk == keystroke.VKReturn:
		if len(p.text) == 0 {
			return keystroke.Pass, ""
		}
		p.text = p.text[:0]
		return keystroke.Consume, ""

	case vk == keystroke.VKBack:
		if p.comp.DeleteLast() {
			return keystroke.Consume, ""
		}
		return keystroke.Pass, ""

	case vk == keystroke.VKPrior:
		p.comp.PrevPage()
		return keystroke.Consume, ""

	case vk == keystroke.VKNext:
		p.comp.NextPage()
		return keystroke.Consume, ""
	}

	if sym, ok := keystroke.Symbol(vk); ok {
		if p.comp.InputSymbol(sym) {
			return keystroke.Consume, ""
		}
		return keystroke.Consume, p.appendLocked(string(sym))
	}
	if ev.Rune != 0 && !unicode.IsControl(ev.Rune) {
		return keystroke.Consume, p.appendLocked(string(ev.Rune))
	}
	return keystroke.Consume, ""
}

func (p *Pad) appendLocked(s string) string {
	p.text = append(p.text, []rune(s)...)
	p.log.Debug("pad text", "runes", len(p.text))
	return string(p.text)
}

// Text returns the accumulated text.
func (p *Pad) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.text)
}

// Snapshot returns the pad's composition state.
func (p *Pad) Snapshot() ime.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.comp.Snapshot()
	s.Intercepting = true
	return s
}

// Reset clears the composition and the accumulated text.
func (p *Pad) Reset() {
	p.mu.Lock()
	p.comp.Clear()
	p.text = p.text[:0]
	p.mu.Unlock()
	p.dirty.Mark()
}
