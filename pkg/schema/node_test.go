package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_String(t *testing.T) {
	n := NewNode("and",
		NewNode("greeting", NewNode("*")),
		NewNode("negation", NewNode("3").InDomain("count")),
	)
	assert.Equal(t, "and(greeting(*), negation(3))", n.String())

	var nilNode *Node
	assert.Equal(t, "<nil>", nilNode.String())
}

func TestNode_InDomain(t *testing.T) {
	n := NewNode("5").InDomain("age")
	assert.Equal(t, "age", n.Domain)
	assert.Empty(t, n.Children)
}

func TestBehaviorError_Format(t *testing.T) {
	err := NewErrorf(ErrCodeConfiguration, "negation requires exactly one child, got %d", 0).WithPath("and[1]/negation")
	assert.Equal(t, "[CONFIGURATION_ERROR] at and[1]/negation: negation requires exactly one child, got 0", err.Error())
	assert.True(t, HasCode(err, ErrCodeConfiguration))
	assert.False(t, HasCode(err, ErrCodeValidation))

	plain := NewError(ErrCodeNotFound, "behavior \"x\" not found")
	assert.Equal(t, "[NOT_FOUND] behavior \"x\" not found", plain.Error())
}

func TestAsBehaviorError_Wrapped(t *testing.T) {
	inner := NewError(ErrCodeConfiguration, "negation requires exactly one child, got 2")
	wrapped := fmt.Errorf("compile support set: %w", inner)

	be, ok := AsBehaviorError(wrapped)
	assert.True(t, ok)
	assert.Same(t, inner, be)
	assert.True(t, HasCode(wrapped, ErrCodeConfiguration))

	_, ok = AsBehaviorError(fmt.Errorf("plain"))
	assert.False(t, ok)
	_, ok = AsBehaviorError(nil)
	assert.False(t, ok)
}
