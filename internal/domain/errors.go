package domain

import "fmt"

// Error is the sum-typed error returned by every pipeline operation.
// Unhandled internal errors are converted to CodeInternal at the
// orchestrator boundary.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error without an underlying cause.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error wrapping an underlying cause.
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Error codes.
const (
	CodeValidation       = "VALIDATION"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeTimeout          = "TIMEOUT"
	CodeUpstream         = "UPSTREAM"
	CodeEmbeddingInvalid = "EMBEDDING_INVALID"
	CodeIndexStale       = "INDEX_STALE"
	CodeInternal         = "INTERNAL"
)

// CodeOf returns the error code of err, or CodeInternal for plain errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return CodeInternal
}

// Validation errors
var (
	ErrEmptyQuery      = NewError(CodeValidation, "query must not be empty")
	ErrInvalidRole     = NewError(CodeValidation, "role must be admin or member")
	ErrInvalidStatus   = NewError(CodeValidation, "invalid task status")
	ErrPasswordTooWeak = NewError(CodeValidation, "password must be at least 6 characters")
)

// Not found errors
var (
	ErrUserNotFound    = NewError(CodeNotFound, "user not found")
	ErrTeamNotFound    = NewError(CodeNotFound, "team not found")
	ErrProjectNotFound = NewError(CodeNotFound, "project not found")
	ErrTaskNotFound    = NewError(CodeNotFound, "task not found")
	ErrModelNotFound   = NewError(CodeNotFound, "model not found")
)

// Conflict errors
var (
	ErrEmailTaken = NewError(CodeConflict, "email is already in use")
)

// Pipeline errors
var (
	ErrEmbeddingInvalid = NewError(CodeEmbeddingInvalid, "embedding failed validation")
)
