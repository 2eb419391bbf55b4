package ime

import "strings"

const (
	// MaxCodeLen bounds the code buffer. Appends past it are ignored.
	MaxCodeLen = 5
	// PageSize is the number of candidates shown per page.
	PageSize = 6
)

// Dictionary is the read side of a code table.
type Dictionary interface {
	Lookup(code string) ([]string, bool)
	HasPrefix(prefix string) bool
}

// shortcut describes a letter that selects a candidate of the current code
// when it cannot extend the code.
type shortcut struct {
	slot int
	min  int
}

var shortcuts = map[rune]shortcut{
	'v': {slot: 1, min: 2},
	'r': {slot: 2, min: 3},
	's': {slot: 3, min: 4},
	'f': {slot: 4, min: 5},
	'w': {slot: 5, min: 6},
}

// IsShortcutLetter reports whether ch can act as a candidate shortcut.
func IsShortcutLetter(ch rune) bool {
	_, ok := shortcuts[ch]
	return ok
}

// Snapshot is an immutable view of a composition.
type Snapshot struct {
	Code       string
	Candidates []string // current page only
	Cursor     int
	Total      int
	Pending    string
	HasPending bool

	// Intercepting is filled in by the dispatcher.
	Intercepting bool
}

// Page returns the 1-based page number and page count.
func (s Snapshot) Page() (page, pages int) {
	if s.Total == 0 {
		return 0, 0
	}
	return s.Cursor/PageSize + 1, (s.Total + PageSize - 1) / PageSize
}

// Composition is the code buffer state machine. It is not safe for
// concurrent use; the owner serializes access.
type Composition struct {
	dict Dictionary

	code       []byte
	candidates []string
	cursor     int
	pending    string
	hasPending bool
}

// NewComposition returns an empty composition backed by dict.
func NewComposition(dict Dictionary) *Composition {
	return &Composition{dict: dict}
}

// SetDictionary swaps the backing dictionary and clears all state.
func (c *Composition) SetDictionary(dict Dictionary) {
	c.dict = dict
	c.Clear()
}

func (c *Composition) lookup(code string) ([]string, bool) {
	if c.dict == nil {
		return nil, false
	}
	return c.dict.Lookup(code)
}

func (c *Composition) hasPrefix(code string) bool {
	if c.dict == nil {
		return false
	}
	return c.dict.HasPrefix(code)
}

func (c *Composition) resolve() {
	c.cursor = 0
	if len(c.code) == 0 {
		c.candidates = nil
		return
	}
	cands, _ := c.lookup(string(c.code))
	c.candidates = cands
}

func (c *Composition) push(ch byte) bool {
	if len(c.code) >= MaxCodeLen {
		return false
	}
	c.code = append(c.code, ch)
	c.pending, c.hasPending = "", false
	return true
}

func (c *Composition) setPending(s string) {
	c.pending, c.hasPending = s, true
}

// AppendLiteral pushes ch onto the code and re-resolves candidates. It is a
// no-op once the code is full.
func (c *Composition) AppendLiteral(ch byte) {
	if c.push(ch) {
		c.resolve()
	}
}

// AppendShortcut handles one of the shortcut letters v, r, s, f and w. When
// the letter cannot extend the code into something meaningful it selects a
// candidate of the current code instead, leaving the code untouched.
// It reports whether a candidate was selected.
func (c *Composition) AppendShortcut(ch byte) bool {
	sc, ok := shortcuts[rune(ch)]
	if !ok || len(c.code) == 0 {
		c.AppendLiteral(ch)
		return false
	}
	extended := string(c.code) + string(ch)
	if _, ok := c.lookup(extended); ok {
		c.AppendLiteral(ch)
		return false
	}
	cands, _ := c.lookup(string(c.code))
	if len(cands) < sc.min {
		c.AppendLiteral(ch)
		return false
	}
	trigger := len(extended) == MaxCodeLen ||
		(len(extended) < MaxCodeLen && !c.hasPrefix(extended))
	if !trigger {
		c.AppendLiteral(ch)
		return false
	}
	c.setPending(cands[sc.slot])
	return true
}

// InputLetter routes an ASCII letter. Upper case is folded. It returns false
// for anything that is not an ASCII letter.
func (c *Composition) InputLetter(ch rune) bool {
	if ch >= 'A' && ch <= 'Z' {
		ch += 'a' - 'A'
	}
	if ch < 'a' || ch > 'z' {
		return false
	}
	if IsShortcutLetter(ch) {
		c.AppendShortcut(byte(ch))
	} else {
		c.AppendLiteral(byte(ch))
	}
	return true
}

// InputSymbol composes punctuation through the dictionary. With a code in
// progress it looks up code+sym; otherwise it tries sym as a new code. On a
// hit the first candidate becomes pending. It returns false when nothing
// matched, leaving the state as it was.
func (c *Composition) InputSymbol(sym byte) bool {
	if len(c.code) > 0 {
		cands, ok := c.lookup(string(c.code) + string(sym))
		if !ok || len(cands) == 0 {
			return false
		}
		c.setPending(cands[0])
		return true
	}

	c.push(sym)
	if cands, ok := c.lookup(string(c.code)); ok && len(cands) > 0 {
		c.setPending(cands[0])
		return true
	}
	if cands, ok := c.lookup(string(sym)); ok && len(cands) > 0 {
		c.setPending(cands[0])
		return true
	}
	c.code = c.code[:len(c.code)-1]
	return false
}

// DeleteLast removes the last code character. It returns false when the
// code is already empty.
func (c *Composition) DeleteLast() bool {
	if len(c.code) == 0 {
		return false
	}
	c.code = c.code[:len(c.code)-1]
	c.pending, c.hasPending = "", false
	c.resolve()
	return true
}

// slotForDigit maps a digit key to a page slot: 1..9 select slots 0..8 and
// 0 selects slot 9.
func slotForDigit(d int) int {
	if d == 0 {
		return 9
	}
	return d - 1
}

// SelectByIndex picks the candidate under digit d on the current page. On
// success the whole state is cleared.
func (c *Composition) SelectByIndex(d int) (string, bool) {
	if d < 0 || d > 9 {
		return "", false
	}
	page := c.window()
	slot := slotForDigit(d)
	if slot >= len(page) {
		return "", false
	}
	s := page[slot]
	c.Clear()
	return s, true
}

// ConfirmDefault returns the pending candidate if one is set, otherwise the
// first candidate. Either way the state is cleared.
func (c *Composition) ConfirmDefault() (string, bool) {
	if c.hasPending {
		s := c.pending
		c.Clear()
		return s, true
	}
	if len(c.candidates) > 0 {
		s := c.candidates[0]
		c.Clear()
		return s, true
	}
	return "", false
}

// Peek returns the raw code without changing anything.
func (c *Composition) Peek() (string, bool) {
	if len(c.code) == 0 {
		return "", false
	}
	return string(c.code), true
}

// Clear empties the code, candidates, cursor and pending selection.
func (c *Composition) Clear() {
	c.code = c.code[:0]
	c.candidates = nil
	c.cursor = 0
	c.pending, c.hasPending = "", false
}

// NextPage advances one page if another page exists.
func (c *Composition) NextPage() bool {
	if c.cursor+PageSize >= len(c.candidates) {
		return false
	}
	c.cursor += PageSize
	return true
}

// PrevPage moves back one page, stopping at the first.
func (c *Composition) PrevPage() bool {
	if c.cursor == 0 {
		return false
	}
	c.cursor -= PageSize
	if c.cursor < 0 {
		c.cursor = 0
	}
	return true
}

func (c *Composition) window() []string {
	if c.cursor >= len(c.candidates) {
		return nil
	}
	end := c.cursor + PageSize
	if end > len(c.candidates) {
		end = len(c.candidates)
	}
	return c.candidates[c.cursor:end]
}

// Code returns the current code.
func (c *Composition) Code() string { return string(c.code) }

// Pending returns the pending candidate, if any.
func (c *Composition) Pending() (string, bool) { return c.pending, c.hasPending }

// Candidates returns a copy of the full candidate list.
func (c *Composition) Candidates() []string {
	return append([]string(nil), c.candidates...)
}

// Page returns a copy of the current page of candidates.
func (c *Composition) Page() []string {
	return append([]string(nil), c.window()...)
}

// Cursor returns the offset of the current page.
func (c *Composition) Cursor() int { return c.cursor }

// Empty reports whether there is nothing to confirm or delete.
func (c *Composition) Empty() bool {
	return len(c.code) == 0 && !c.hasPending
}

// Snapshot copies the state for rendering.
func (c *Composition) Snapshot() Snapshot {
	return Snapshot{
		Code:       string(c.code),
		Candidates: c.Page(),
		Cursor:     c.cursor,
		Total:      len(c.candidates),
		Pending:    c.pending,
		HasPending: c.hasPending,
	}
}

// String renders the state on one line for logs.
func (c *Composition) String() string {
	var b strings.Builder
	b.WriteString(string(c.code))
	if c.hasPending {
		b.WriteString(" => ")
		b.WriteString(c.pending)
	}
	return b.String()
}
