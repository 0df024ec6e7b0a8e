package ingest

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
)

// ErrorKind is the machine-readable kind of an ingestion error.
type ErrorKind string

const (
	ErrNoFile          ErrorKind = "no_file"
	ErrNoData          ErrorKind = "no_data"
	ErrSchemaMismatch  ErrorKind = "schema_mismatch"
	ErrDuplicateColumn ErrorKind = "duplicate_column"
	ErrTooManyColumns  ErrorKind = "too_many_columns"
	ErrUnknownDomain   ErrorKind = "unknown_domain"
	ErrStorage         ErrorKind = "storage"
	ErrTimeout         ErrorKind = "timeout"

	// ErrValidation is the kind reported for a *core.ValidationError (bad request input).
	ErrValidation ErrorKind = core.ValidationKind
)

// Error is an ingestion pipeline error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying error, if any
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == ErrStorage {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether the cause of err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, or "" if it is neither an *Error nor a *core.ValidationError.
func KindOf(err error) ErrorKind {
	switch e := errors.Cause(err).(type) {
	case *Error:
		return e.Kind
	case *core.ValidationError:
		return ErrorKind(e.Kind())
	}
	return ""
}

func NoFileError() error {
	return &Error{Kind: ErrNoFile, Message: "no file provided"}
}

func NoDataError() error {
	return &Error{Kind: ErrNoData, Message: "file contains no data"}
}

func SchemaMismatchError(column string, row int) error {
	return &Error{
		Kind:    ErrSchemaMismatch,
		Message: fmt.Sprintf("row %d: unknown column %q", row, column),
	}
}

func DuplicateColumnError(name, label, otherLabel string) error {
	return &Error{
		Kind:    ErrDuplicateColumn,
		Message: fmt.Sprintf("headers %q and %q both map to column %q", otherLabel, label, name),
	}
}

func TooManyColumnsError(n int) error {
	return &Error{
		Kind:    ErrTooManyColumns,
		Message: fmt.Sprintf("sheet has %d columns, at most %d are supported", n, MaxColumns),
	}
}

func UnknownDomainError(domain string) error {
	return &Error{Kind: ErrUnknownDomain, Message: fmt.Sprintf("unknown domain %q", domain)}
}

func TimeoutError(err error) error {
	return &Error{Kind: ErrTimeout, Message: "ingestion timed out", Err: err}
}

// StorageError wraps an underlying store failure.
// A context deadline is reported as a TimeoutError instead; a postgres shutdown carries a core shutdown error.
func StorageError(err error, msg string) error {
	cause := errors.Cause(err)
	if cause == context.DeadlineExceeded {
		return TimeoutError(err)
	}
	if e, ok := cause.(*Error); ok {
		return e
	}
	if pqErr, ok := cause.(*pq.Error); ok {
		msg = fmt.Sprintf("%s (%s)", msg, pqErr.Code)
		if shutdownCodes[pqErr.Code] {
			err = core.NewShutdownError(err)
		}
	}
	return &Error{Kind: ErrStorage, Message: msg, Err: err}
}

// shutdownCodes are the postgres errors of a server going away: the app stops instead of retrying.
var shutdownCodes = map[pq.ErrorCode]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}
