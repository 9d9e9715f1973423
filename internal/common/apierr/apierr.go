// Package apierr provides the structured errors returned to API callers.
package apierr

import "fmt"

// Kind identifies the class of request failure.
type Kind string

const (
	KindUnrecognizedParameters Kind = "UNRECOGNIZED_PARAMETERS"
	KindInvalidParameter       Kind = "INVALID_PARAMETER"
	KindTooManyIdentifiers     Kind = "TOO_MANY_IDENTIFIERS"
	KindInternal               Kind = "INTERNAL_ERROR"
)

// Error is the caller-visible error envelope. Code is a stable contract:
// 400 for rejected input, 500 for backend or internal failure.
type Error struct {
	Kind    Kind   `json:"-"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewUnrecognizedParameters reports raw keys outside the accepted set.
// The message lists exactly the offending keys.
func NewUnrecognizedParameters(params string) *Error {
	return &Error{
		Kind:    KindUnrecognizedParameters,
		Message: "Unrecognized parameters: " + params,
		Code:    400,
	}
}

// NewInvalidParameter reports a recognized key whose value fails its rule.
func NewInvalidParameter(rule string) *Error {
	return &Error{
		Kind:    KindInvalidParameter,
		Message: "Invalid parameter: " + rule,
		Code:    400,
	}
}

// NewTooManyIdentifiers reports a fetch request above the identifier bound.
func NewTooManyIdentifiers(message string) *Error {
	return &Error{
		Kind:    KindTooManyIdentifiers,
		Message: message,
		Code:    400,
	}
}

// NewInternal reports a backend or logic failure. Details never reach the
// caller, only the generic message.
func NewInternal() *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "Internal error",
		Code:    500,
	}
}

// IsBadRequest reports whether err is a caller-caused 400.
func IsBadRequest(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == 400
}
