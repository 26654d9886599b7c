package model

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a class of engine failure. The value doubles as the
// machine-readable code returned to API clients.
type ErrorKind string

const (
	KindSchemaInference   ErrorKind = "schema_inference_error"
	KindTableExists       ErrorKind = "table_already_exists"
	KindTableNotFound     ErrorKind = "table_not_found"
	KindInvalidPagination ErrorKind = "invalid_pagination"
	KindInsert            ErrorKind = "insert_error"
	KindQuerySyntax       ErrorKind = "query_syntax_error"
	KindDisallowed        ErrorKind = "disallowed_statement"
	KindQueryExecution    ErrorKind = "query_execution_error"
)

// Error is the single error type surfaced by the engine. Message is safe to
// show to callers; Err holds the internal cause for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
	// Timeout marks a QueryExecutionError caused by the server-side deadline.
	Timeout bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the per-kind sentinels below, so callers can write
// errors.Is(err, model.ErrTableNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSchemaInference   = &Error{Kind: KindSchemaInference}
	ErrTableExists       = &Error{Kind: KindTableExists}
	ErrTableNotFound     = &Error{Kind: KindTableNotFound}
	ErrInvalidPagination = &Error{Kind: KindInvalidPagination}
	ErrInsert            = &Error{Kind: KindInsert}
	ErrQuerySyntax       = &Error{Kind: KindQuerySyntax}
	ErrDisallowed        = &Error{Kind: KindDisallowed}
	ErrQueryExecution    = &Error{Kind: KindQueryExecution}
)

// Errorf builds an Error with a formatted public message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error that keeps cause for logging.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// TableNotFound is the common not-found error for a table name.
func TableNotFound(name string) *Error {
	return Errorf(KindTableNotFound, "table %q not found", name)
}

// AsError extracts the engine error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
