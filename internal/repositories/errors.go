package repositories

import "fmt"

// ErrorCode enumerates failure categories reported by in-process repositories.
type ErrorCode string

const (
	// ErrorNotFound reports a missing record.
	ErrorNotFound ErrorCode = "not_found"
	// ErrorConflict reports a duplicate key or a stale write.
	ErrorConflict ErrorCode = "conflict"
	// ErrorUnavailable reports a closed or unreachable store.
	ErrorUnavailable ErrorCode = "unavailable"
	// ErrorInvalidInput reports arguments the store cannot accept.
	ErrorInvalidInput ErrorCode = "invalid_input"
)

// StoreError is the RepositoryError produced by repositories that are not backed by Firestore.
type StoreError struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*StoreError)(nil)

// NewStoreError constructs a typed store error.
func NewStoreError(op string, code ErrorCode, message string, err error) *StoreError {
	if message == "" {
		message = string(code)
	}
	return &StoreError{Op: op, Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Code == ErrorNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Code == ErrorConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Code == ErrorUnavailable }
