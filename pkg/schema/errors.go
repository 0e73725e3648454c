package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeTemplate      = "TEMPLATE_ERROR"
	ErrCodeStore         = "STORE_ERROR"
)

// BehaviorError is the structured error type for rule resolution, behavior
// compilation, templating and storage.
type BehaviorError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *BehaviorError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *BehaviorError) Unwrap() error {
	return e.Cause
}

// NewError creates a new BehaviorError.
func NewError(code, message string) *BehaviorError {
	return &BehaviorError{Code: code, Message: message}
}

// NewErrorf creates a new BehaviorError with a formatted message.
func NewErrorf(code, format string, args ...any) *BehaviorError {
	return &BehaviorError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPath attaches the location of the offending node or document field.
func (e *BehaviorError) WithPath(path string) *BehaviorError {
	e.Path = path
	return e
}

// WithCause attaches an underlying cause.
func (e *BehaviorError) WithCause(err error) *BehaviorError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *BehaviorError) WithDetails(details map[string]any) *BehaviorError {
	e.Details = details
	return e
}

// AsBehaviorError finds the first BehaviorError in err's chain.
func AsBehaviorError(err error) (*BehaviorError, bool) {
	var be *BehaviorError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// HasCode reports whether err is a BehaviorError carrying the given code.
func HasCode(err error, code string) bool {
	be, ok := AsBehaviorError(err)
	return ok && be.Code == code
}
