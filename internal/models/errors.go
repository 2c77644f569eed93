package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
// Every *ValidationError unwraps to exactly one of these, so callers can
// branch with errors.Is() without parsing messages.
var (
	ErrMalformed        = errors.New("malformed JSON")
	ErrRequired         = errors.New("required field missing")
	ErrWrongType        = errors.New("wrong type")
	ErrTooLong          = errors.New("value too long")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidBase64    = errors.New("invalid base64 encoding")
	ErrMediaType        = errors.New("media type not allowed")
	ErrDuplicateID      = errors.New("duplicate message id")
)

// ValidationError identifies the offending field and the violated rule.
// Field is a path such as "messages[2].content.files[0].data".
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field string, sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}

func required(field string) *ValidationError {
	return invalid(field, ErrRequired, "is required")
}

func wrongType(field, want string, got any) *ValidationError {
	return invalid(field, ErrWrongType, "expected %s, got %s", want, jsonKind(got))
}

// jsonKind names the JSON type of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "number"
	}
}

func fieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
