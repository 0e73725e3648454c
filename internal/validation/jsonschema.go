package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/behaviors/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// behaviorSetSchemaJSON is the JSON Schema for BehaviorSet documents.
// Embedded as a constant to avoid filesystem dependencies.
const behaviorSetSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://behaviors.dev/schemas/behavior-set.json",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "version": { "type": "string" },
    "behaviors": {
      "type": "array",
      "items": { "$ref": "#/$defs/behavior" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "behavior": {
      "type": "object",
      "required": ["id", "expression"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "expression": { "$ref": "#/$defs/node" },
        "guard": { "type": "string" },
        "actions": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        },
        "outputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/output" }
        },
        "quick_replies": {
          "type": "array",
          "items": { "$ref": "#/$defs/quick_reply" }
        }
      },
      "additionalProperties": false
    },
    "node": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "domain": { "type": "string" },
        "children": {
          "type": "array",
          "items": { "$ref": "#/$defs/node" }
        }
      },
      "additionalProperties": false
    },
    "output": {
      "type": "object",
      "required": ["type", "value"],
      "properties": {
        "type": { "type": "string", "enum": ["text", "html"] },
        "value": { "type": "string" }
      },
      "additionalProperties": false
    },
    "quick_reply": {
      "type": "object",
      "required": ["value"],
      "properties": {
        "value": { "type": "string" },
        "expressions": { "type": "string" },
        "is_default": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  }
}`

const behaviorSetSchemaURL = "https://behaviors.dev/schemas/behavior-set.json"

// JSONSchemaValidator checks the structure of behavior-set documents against
// a JSON Schema (Draft 2020-12). It is safe for concurrent use.
type JSONSchemaValidator struct {
	setSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the behavior-set
// schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(behaviorSetSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal behavior-set schema: %w", err)
	}
	if err := c.AddResource(behaviorSetSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add behavior-set schema resource: %w", err)
	}

	setSchema, err := c.Compile(behaviorSetSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile behavior-set schema: %w", err)
	}

	return &JSONSchemaValidator{setSchema: setSchema}, nil
}

// ValidateDocument validates a decoded document (JSON or YAML) before it is
// bound to a BehaviorSet, so unknown fields are reported.
func (v *JSONSchemaValidator) ValidateDocument(doc any) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if doc == nil {
		result.AddError("/", schema.ErrCodeValidation, "behavior set document is empty")
		return result
	}

	value, err := toJSONValue(doc)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, "failed to serialize behavior set: "+err.Error())
		return result
	}

	if err := v.setSchema.Validate(value); err != nil {
		addViolations(result, err)
	}
	return result
}

// ValidateSet validates an already bound BehaviorSet.
func (v *JSONSchemaValidator) ValidateSet(set *schema.BehaviorSet) error {
	if set == nil {
		return schema.NewError(schema.ErrCodeValidation, "behavior set is nil")
	}
	return v.ValidateDocument(set).ToError()
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// addViolations walks a ValidationError tree and records each leaf with its
// instance location.
func addViolations(result *schema.ValidationResult, err error) {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return
	}
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		result.AddError(loc, schema.ErrCodeValidation, verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		addViolations(result, cause)
	}
}
