package validation

import "github.com/rendis/behaviors/pkg/schema"

// Validator checks behavior sets for correctness before they are compiled.
type Validator interface {
	ValidateDocument(doc any) *schema.ValidationResult
	ValidateSet(set *schema.BehaviorSet) error
}
