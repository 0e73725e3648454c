package validation

import (
	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/pkg/schema"
)

// SetValidator orchestrates the two-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (unique ids, resolvable expressions)
type SetValidator struct {
	jsonSchema *JSONSchemaValidator
	resolver   *expressions.Resolver
}

// NewSetValidator creates a SetValidator. resolver may be nil to use the
// built-in registry.
func NewSetValidator(resolver *expressions.Resolver) (*SetValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = expressions.NewResolver(nil)
	}
	return &SetValidator{jsonSchema: jsv, resolver: resolver}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit the semantic stage.
func (sv *SetValidator) Validate(set *schema.BehaviorSet) *schema.ValidationResult {
	if set == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "behavior set is nil")
		return r
	}

	result := sv.jsonSchema.ValidateDocument(set)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(set, sv.resolver))
	return result
}

// ValidateDocument validates a decoded document's structure only.
func (sv *SetValidator) ValidateDocument(doc any) *schema.ValidationResult {
	return sv.jsonSchema.ValidateDocument(doc)
}

// ValidateSet satisfies the Validator interface.
func (sv *SetValidator) ValidateSet(set *schema.BehaviorSet) error {
	return sv.Validate(set).ToError()
}

var (
	_ Validator = (*SetValidator)(nil)
	_ Validator = (*JSONSchemaValidator)(nil)
)
