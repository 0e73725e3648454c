package behavior

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/behaviors/internal/validation"
	"github.com/rendis/behaviors/pkg/schema"
)

// Format is the encoding of a behavior-set document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the document format from a file extension. Anything other
// than .yaml or .yml is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and parses a behavior-set file.
func LoadFile(path string) (*schema.BehaviorSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "read behavior set %s", path).WithCause(err)
	}
	set, err := Parse(data, FormatFor(path))
	if err != nil {
		if be, ok := schema.AsBehaviorError(err); ok && be.Details == nil {
			be.WithDetails(map[string]any{"file": path})
		}
		return nil, err
	}
	return set, nil
}

// Parse decodes a behavior-set document and checks its structure against
// the behavior-set schema. Unknown fields are rejected.
func Parse(data []byte, format Format) (*schema.BehaviorSet, error) {
	jsv, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("create schema validator: %w", err)
	}

	switch format {
	case FormatYAML:
		// Decoded straight into the typed set so unquoted scalars such as
		// `name: 3` become strings.
		var set schema.BehaviorSet
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&set); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid YAML behavior set").WithCause(err)
		}
		if err := jsv.ValidateDocument(&set).ToError(); err != nil {
			return nil, err
		}
		return &set, nil

	case FormatJSON:
		var doc any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON behavior set").WithCause(err)
		}
		if err := jsv.ValidateDocument(doc).ToError(); err != nil {
			return nil, err
		}
		var set schema.BehaviorSet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "decode behavior set").WithCause(err)
		}
		return &set, nil

	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported behavior set format %q", format)
	}
}
