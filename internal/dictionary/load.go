package dictionary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Errors returned while loading dictionary files.
var (
	ErrNotFound  = errors.New("dictionary file not found")
	ErrMalformed = errors.New("malformed dictionary")
)

// Options controls Load.
type Options struct {
	// CustomPath names an optional user dictionary merged after the main
	// table. A missing custom file is not an error.
	CustomPath string
	// Validate checks both files against their JSON schema before decoding.
	Validate bool
}

// Load reads the main table at path and merges the custom dictionary named in
// opts. A missing main table is reported as ErrNotFound together with the
// expected path.
func Load(path string, opts Options) (*Dictionary, error) {
	entries, err := LoadFile(path, opts.Validate)
	if err != nil {
		return nil, err
	}
	if opts.CustomPath != "" {
		custom, err := LoadCustom(opts.CustomPath, opts.Validate)
		if err != nil {
			return nil, err
		}
		entries = append(entries, custom...)
	}
	return New(entries), nil
}

// LoadFile reads and decodes the main table without building a dictionary.
func LoadFile(path string, validate bool) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: expected at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if validate {
		if err := Validate(data, KindTable); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	entries, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// LoadCustom reads a user dictionary. It returns no entries and no error when
// the file does not exist.
func LoadCustom(path string, validate bool) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read custom dictionary: %w", err)
	}
	if validate {
		if err := Validate(data, KindCustom); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	entries, err := DecodeCustom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Decode reads a main table of the form {"chardefs": {code: [candidates]}}.
// Other top-level members are ignored. Entries come back in file order.
func Decode(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []Entry
	found := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "chardefs" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			continue
		}
		found = true
		entries, err = decodeCodeMap(dec)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: missing chardefs", ErrMalformed)
	}
	return entries, nil
}

// DecodeCustom reads a user dictionary of the form {code: [words]}.
func DecodeCustom(r io.Reader) ([]Entry, error) {
	return decodeCodeMap(json.NewDecoder(r))
}

func decodeCodeMap(dec *json.Decoder) ([]Entry, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []Entry
	for dec.More() {
		code, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var cands []string
		if err := dec.Decode(&cands); err != nil {
			return nil, fmt.Errorf("%w: code %q: %v", ErrMalformed, code, err)
		}
		entries = append(entries, Entry{Code: code, Candidates: cands})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformed, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrMalformed, tok)
	}
	return key, nil
}
