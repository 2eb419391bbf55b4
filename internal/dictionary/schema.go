package dictionary

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind selects the schema used by Validate.
type Kind int

const (
	KindTable Kind = iota
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

const tableSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["chardefs"],
  "properties": {
    "chardefs": {
      "type": "object",
      "propertyNames": {"minLength": 1},
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

const customSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "propertyNames": {"pattern": "^[A-Za-z,.\\[\\]']{1,5}$"},
  "additionalProperties": {
    "type": "array",
    "items": {"type": "string", "minLength": 1}
  }
}`

var (
	schemaOnce sync.Once
	schemas    map[Kind]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	schemas = make(map[Kind]*jsonschema.Schema, 2)
	for kind, src := range map[Kind]string{KindTable: tableSchema, KindCustom: customSchema} {
		url := "ucliu://dictionary/" + kind.String() + ".schema.json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
			schemaErr = fmt.Errorf("add %s schema: %w", kind, err)
			return
		}
		s, err := compiler.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("compile %s schema: %w", kind, err)
			return
		}
		schemas[kind] = s
	}
}

// Validate checks raw JSON against the schema for kind.
func Validate(data []byte, kind Kind) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("unknown dictionary kind %v", kind)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
