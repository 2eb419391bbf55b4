// Package dictionary holds the code table that maps stroke codes to word
// candidates.
//
// A Dictionary is built once and never mutated afterwards. Keys are folded to
// lower case while building, so every query is case-insensitive. When two
// source keys fold to the same code their candidate lists are merged: the
// first list keeps its order and later candidates are appended unless already
// present.
package dictionary

import (
	"sort"
	"strings"
)

// Entry is one code and its ordered candidates, in source order.
type Entry struct {
	Code       string
	Candidates []string
}

// Dictionary is an immutable code table.
type Dictionary struct {
	table map[string][]string
	// keys is sorted so prefix queries can binary search.
	keys []string
}

// New builds a dictionary from entries. Entries are applied in order.
func New(entries []Entry) *Dictionary {
	table := make(map[string][]string, len(entries))
	for _, e := range entries {
		mergeInto(table, e)
	}
	return build(table)
}

// Merge returns a new dictionary holding base plus extra entries, merged
// with the same rule used while loading. base is not modified.
func Merge(base *Dictionary, extra ...Entry) *Dictionary {
	table := make(map[string][]string, base.Len()+len(extra))
	if base != nil {
		for code, cands := range base.table {
			table[code] = append([]string(nil), cands...)
		}
	}
	for _, e := range extra {
		mergeInto(table, e)
	}
	return build(table)
}

func mergeInto(table map[string][]string, e Entry) {
	code := strings.ToLower(e.Code)
	if code == "" {
		return
	}
	existing, ok := table[code]
	if !ok {
		table[code] = append([]string(nil), e.Candidates...)
		return
	}
	for _, c := range e.Candidates {
		if !contains(existing, c) {
			existing = append(existing, c)
		}
	}
	table[code] = existing
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func build(table map[string][]string) *Dictionary {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Dictionary{table: table, keys: keys}
}

// Lookup returns the candidates for code. The returned slice is shared and
// must not be modified.
func (d *Dictionary) Lookup(code string) ([]string, bool) {
	if d == nil {
		return nil, false
	}
	cands, ok := d.table[strings.ToLower(code)]
	return cands, ok
}

// HasPrefix reports whether some key other than prefix itself starts with
// prefix.
func (d *Dictionary) HasPrefix(prefix string) bool {
	if d == nil {
		return false
	}
	prefix = strings.ToLower(prefix)
	for i := sort.SearchStrings(d.keys, prefix); i < len(d.keys); i++ {
		k := d.keys[i]
		if !strings.HasPrefix(k, prefix) {
			return false
		}
		if k != prefix {
			return true
		}
	}
	return false
}

// CandidateCount returns the number of candidates for code, 0 if unknown.
func (d *Dictionary) CandidateCount(code string) int {
	cands, _ := d.Lookup(code)
	return len(cands)
}

// Len returns the number of distinct codes.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Codes returns every code in sorted order.
func (d *Dictionary) Codes() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

// WithPrefix returns up to limit codes starting with prefix, sorted.
// A limit <= 0 means no limit.
func (d *Dictionary) WithPrefix(prefix string, limit int) []string {
	if d == nil {
		return nil
	}
	prefix = strings.ToLower(prefix)
	var out []string
	for i := sort.SearchStrings(d.keys, prefix); i < len(d.keys); i++ {
		if !strings.HasPrefix(d.keys[i], prefix) {
			break
		}
		out = append(out, d.keys[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
