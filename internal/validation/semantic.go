package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/pkg/schema"
)

// validateSemantic checks what the schema cannot express: unique behavior
// IDs, resolvable expressions (operator arity), and behaviors that would
// trigger without effect.
func validateSemantic(set *schema.BehaviorSet, resolver *expressions.Resolver) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]int, len(set.Behaviors))
	for i := range set.Behaviors {
		b := &set.Behaviors[i]
		path := fmt.Sprintf("behaviors[%d]", i)

		if strings.TrimSpace(b.ID) == "" {
			result.AddError(path+".id", schema.ErrCodeValidation, "behavior id is empty")
		} else if first, dup := seen[b.ID]; dup {
			result.AddError(path+".id", schema.ErrCodeConflict,
				fmt.Sprintf("duplicate behavior id %q (first declared at behaviors[%d])", b.ID, first))
		} else {
			seen[b.ID] = i
		}

		validateExpression(b, path, resolver, result)

		if len(b.Actions) == 0 && len(b.Outputs) == 0 {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("behavior %q has no actions or outputs", b.ID))
		}
	}
	return result
}

func validateExpression(b *schema.BehaviorRule, path string, resolver *expressions.Resolver, result *schema.ValidationResult) {
	if b.Expression == nil {
		result.AddError(path+".expression", schema.ErrCodeValidation, "expression is required")
		return
	}
	if _, err := resolver.Resolve(b.Expression); err != nil {
		code, loc := schema.ErrCodeConfiguration, path+".expression"
		if be, ok := schema.AsBehaviorError(err); ok {
			code = be.Code
			if be.Path != "" {
				loc += "/" + be.Path
			}
			result.AddError(loc, code, be.Message)
			return
		}
		result.AddError(loc, code, err.Error())
	}
}
