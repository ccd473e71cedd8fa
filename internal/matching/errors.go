package matching

import "errors"

// Kind classifies a matching failure for callers that map errors onto
// transport-level responses
type Kind string

const (
	KindNotFound Kind = "not_found"
	KindConflict Kind = "conflict"
	KindInvalid  Kind = "invalid"
	KindInternal Kind = "internal"
)

// Error is a typed failure with a short machine-checkable code and a
// human-readable message
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// NewNotFound creates a not-found error
func NewNotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// NewConflict creates a conflict error
func NewConflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NewInvalid creates a validation error
func NewInvalid(code, message string) *Error {
	return &Error{Kind: KindInvalid, Code: code, Message: message}
}

// NewInternal creates an internal error
func NewInternal(code, message string) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: message}
}

// KindOf returns the kind of a matching error, or KindInternal for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-checkable code of a matching error, or "" for
// anything else
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether err is a matching error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
