package core

import "github.com/pkg/errors"

// ValidationKind is the machine-readable kind reported for every ValidationError.
const ValidationKind = "validation"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports bad input: an unsupported upload, an invalid mode, a missing term label...
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ValidationKind + " failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

func (ValidationError) Kind() string {
	return ValidationKind
}

// FieldMap returns the field errors keyed by field; the last error of a field wins.
func (err ValidationError) FieldMap() map[string]string {
	if len(err.Fields) == 0 {
		return nil
	}
	flds := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

// shutdown is a failure the app cannot recover from, eg. the database shutting down.
type shutdown struct {
	err error
}

func NewShutdownError(err error) error {
	return &shutdown{err: err}
}

func (s shutdown) Error() string {
	return "shutting down: " + s.err.Error()
}

func (s shutdown) Unwrap() error {
	return s.err
}

// IsShutdown reports whether a shutdown error is found in the chain of err.
func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
