package dictionary

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	d := New([]Entry{{Code: "AB", Candidates: []string{"X"}}})

	for _, q := range []string{"ab", "AB", "aB"} {
		got, ok := d.Lookup(q)
		require.True(t, ok, q)
		assert.Equal(t, []string{"X"}, got)
	}
	_, ok := d.Lookup("abc")
	assert.False(t, ok)
}

func TestMergeCollidingKeys(t *testing.T) {
	d := New([]Entry{
		{Code: "a", Candidates: []string{"one", "two"}},
		{Code: "A", Candidates: []string{"two", "three"}},
	})

	got, ok := d.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, 1, d.Len())
}

func TestHasPrefix(t *testing.T) {
	d := New([]Entry{
		{Code: "si", Candidates: []string{"x"}},
		{Code: "sisp", Candidates: []string{"y"}},
		{Code: "t", Candidates: []string{"z"}},
	})

	tests := []struct {
		prefix string
		want   bool
	}{
		{"s", true},
		{"si", true},
		{"sis", true},
		{"sisp", false},
		{"t", false},
		{"u", false},
		{"", true},
		{"SI", true},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, d.HasPrefix(tt.prefix))
		})
	}
}

func TestNilDictionary(t *testing.T) {
	var d *Dictionary
	_, ok := d.Lookup("a")
	assert.False(t, ok)
	assert.False(t, d.HasPrefix("a"))
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, 0, d.CandidateCount("a"))
}

func TestMergeLeavesBaseUntouched(t *testing.T) {
	base := New([]Entry{{Code: "a", Candidates: []string{"one"}}})
	merged := Merge(base, Entry{Code: "a", Candidates: []string{"mine"}}, Entry{Code: "zz", Candidates: []string{"new"}})

	got, _ := merged.Lookup("a")
	assert.Equal(t, []string{"one", "mine"}, got)
	assert.Equal(t, 2, merged.Len())

	got, _ = base.Lookup("a")
	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, 1, base.Len())
}

func TestWithPrefix(t *testing.T) {
	d := New([]Entry{
		{Code: "ab", Candidates: []string{"1"}},
		{Code: "a", Candidates: []string{"2"}},
		{Code: "abc", Candidates: []string{"3"}},
		{Code: "b", Candidates: []string{"4"}},
	})
	assert.Equal(t, []string{"a", "ab", "abc"}, d.WithPrefix("a", 0))
	assert.Equal(t, []string{"ab"}, d.WithPrefix("ab", 1))
	assert.Empty(t, d.WithPrefix("c", 0))
	assert.Equal(t, []string{"a", "ab", "abc", "b"}, d.Codes())
}

func TestDecodePreservesFileOrder(t *testing.T) {
	src := `{"cname": "liu", "chardefs": {"b": ["2"], "a": ["1", "x"], "A": ["y", "1"]}, "tail": [1, 2]}`
	entries, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].Code)
	assert.Equal(t, "A", entries[2].Code)

	d := New(entries)
	got, _ := d.Lookup("a")
	assert.Equal(t, []string{"1", "x", "y"}, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"not an object":    `[1, 2]`,
		"missing chardefs": `{"other": {}}`,
		"bad candidates":   `{"chardefs": {"a": "x"}}`,
		"truncated":        `{"chardefs": {"a": ["x"]`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestLoadMissingFileNamesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liu.json")
	_, err := Load(path, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), path)
}

func TestLoadWithCustom(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "liu.json", `{"chardefs": {"a": ["one"], "ab": ["two"]}}`)
	custom := writeFile(t, dir, "custom.json", `{"A": ["mine"], "zz": ["new"]}`)

	d, err := Load(table, Options{CustomPath: custom, Validate: true})
	require.NoError(t, err)

	got, _ := d.Lookup("a")
	assert.Equal(t, []string{"one", "mine"}, got)
	got, _ = d.Lookup("zz")
	assert.Equal(t, []string{"new"}, got)
}

func TestLoadMissingCustomIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "liu.json", `{"chardefs": {"a": ["one"]}}`)

	d, err := Load(table, Options{CustomPath: filepath.Join(dir, "custom.json")})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		data    string
		wantErr bool
	}{
		{"table ok", KindTable, `{"chardefs": {"a": ["x"]}}`, false},
		{"table missing chardefs", KindTable, `{"a": ["x"]}`, true},
		{"table non-string candidate", KindTable, `{"chardefs": {"a": [1]}}`, true},
		{"custom ok", KindCustom, `{"ab,.": ["x"], "Q'": ["y"]}`, false},
		{"custom code too long", KindCustom, `{"abcdef": ["x"]}`, true},
		{"custom bad char", KindCustom, `{"a1": ["x"]}`, true},
		{"not json", KindCustom, `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.data), tt.kind)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCustomEditAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "custom.json")

	c, err := OpenCustom(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.Add("ZZ", "first"))
	require.NoError(t, c.Add("zz", "second"))
	require.NoError(t, c.Add("zz", "first"))
	require.NoError(t, c.Add("a.", "dot"))
	assert.ErrorIs(t, c.Add("a1", "x"), ErrInvalidCode)
	assert.ErrorIs(t, c.Add("abcdef", "x"), ErrInvalidCode)
	assert.Error(t, c.Add("q", "  "))

	require.NoError(t, c.Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, Validate(data, KindCustom))

	reopened, err := OpenCustom(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Code: "zz", Candidates: []string{"first", "second"}},
		{Code: "a.", Candidates: []string{"dot"}},
	}, reopened.Entries())

	assert.True(t, reopened.Remove("zz", "first"))
	assert.False(t, reopened.Remove("zz", "missing"))
	assert.True(t, reopened.Remove("a.", ""))
	assert.False(t, reopened.Remove("nope", ""))
	assert.Equal(t, []Entry{{Code: "zz", Candidates: []string{"second"}}}, reopened.Entries())

	assert.True(t, reopened.Remove("zz", "second"))
	assert.Equal(t, 0, reopened.Len())
}

func TestSaveEmptyCustom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, NewCustom(nil).Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}
