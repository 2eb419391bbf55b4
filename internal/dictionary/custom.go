package dictionary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxCodeLen is the longest code a user can define.
const MaxCodeLen = 5

// customCodeChars are the characters accepted in user-defined codes.
const customCodeChars = "abcdefghijklmnopqrstuvwxyz,.]['"

var ErrInvalidCode = errors.New("invalid custom code")

// ValidCustomCode reports whether code may be stored in a user dictionary.
// Case is ignored.
func ValidCustomCode(code string) bool {
	code = strings.ToLower(code)
	if code == "" || len(code) > MaxCodeLen {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(customCodeChars, r) {
			return false
		}
	}
	return true
}

// Custom is an editable user dictionary that keeps insertion order.
type Custom struct {
	order []string
	words map[string][]string
}

// NewCustom returns a Custom populated from entries. Codes are lowercased and
// colliding codes merged.
func NewCustom(entries []Entry) *Custom {
	c := &Custom{words: make(map[string][]string)}
	for _, e := range entries {
		for _, w := range e.Candidates {
			c.add(strings.ToLower(e.Code), w)
		}
	}
	return c
}

// OpenCustom reads the user dictionary at path. A missing file yields an empty
// dictionary.
func OpenCustom(path string) (*Custom, error) {
	entries, err := LoadCustom(path, false)
	if err != nil {
		return nil, err
	}
	return NewCustom(entries), nil
}

// Add appends word under code unless it is already present.
func (c *Custom) Add(code, word string) error {
	if !ValidCustomCode(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return errors.New("empty word")
	}
	c.add(strings.ToLower(code), word)
	return nil
}

func (c *Custom) add(code, word string) {
	if code == "" {
		return
	}
	list, ok := c.words[code]
	if !ok {
		c.order = append(c.order, code)
	}
	if contains(list, word) {
		return
	}
	c.words[code] = append(list, word)
}

// Remove deletes word from code. An empty word removes the whole code.
// It reports whether anything changed.
func (c *Custom) Remove(code, word string) bool {
	code = strings.ToLower(code)
	list, ok := c.words[code]
	if !ok {
		return false
	}
	if word != "" {
		kept := list[:0:0]
		for _, w := range list {
			if w != word {
				kept = append(kept, w)
			}
		}
		if len(kept) == len(list) {
			return false
		}
		if len(kept) > 0 {
			c.words[code] = kept
			return true
		}
	}
	delete(c.words, code)
	for i, k := range c.order {
		if k == code {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Entries returns the dictionary contents in insertion order.
func (c *Custom) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, Entry{Code: code, Candidates: append([]string(nil), c.words[code]...)})
	}
	return out
}

// Len returns the number of codes.
func (c *Custom) Len() int { return len(c.order) }

// Save writes the dictionary to path as {code: [words]} in insertion order.
func (c *Custom) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, code := range c.order {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		if err := writeJSON(&buf, code); err != nil {
			return err
		}
		buf.WriteString(": ")
		if err := writeJSON(&buf, c.words[code]); err != nil {
			return err
		}
	}
	if len(c.order) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create custom dictionary dir: %w", err)
		}
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write custom dictionary: %w", err)
	}
	return nil
}

// writeFileAtomic writes through a temporary file in the same directory so
// a watcher reloading path never reads a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
