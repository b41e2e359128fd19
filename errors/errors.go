package errors

import (
	stderrors "errors"

	"github.com/pgkit/pgcore/codes"
)

// Error contains all Postgres wire protocol error fields.
// See https://www.postgresql.org/docs/current/static/protocol-error-fields.html
// for a list of all Postgres error fields, most of which are optional and can
// be used to provide auxiliary error information.
type Error struct {
	Code           codes.Code
	Message        string
	Detail         string
	Hint           string
	Position       int32
	Where          string
	Schema         string
	Table          string
	Column         string
	DataType       string
	ConstraintName string
	Severity       Severity
	Source         *Source
}

// Source represents whenever possible the source of a given error.
type Source struct {
	File     string
	Line     int32
	Function string
}

func (e *Error) Error() string {
	if e.Severity == "" {
		return e.Message
	}

	return string(e.Severity) + ": " + e.Message + " (SQLSTATE " + string(e.Code) + ")"
}

// Flatten returns a flattened error which could be used to construct Postgres
// wire error messages.
func Flatten(err error) Error {
	if err == nil {
		return Error{
			Code:     codes.Internal,
			Message:  "unknown error, an internal process attempted to throw an error",
			Severity: LevelFatal,
		}
	}

	result := Error{
		Code:           GetCode(err),
		Message:        err.Error(),
		Severity:       DefaultSeverity(GetSeverity(err)),
		ConstraintName: GetConstraintName(err),
	}

	return result
}

// WithConstraintName decorates the error with the name of the constraint that
// was violated.
func WithConstraintName(err error, constraint string) error {
	if err == nil {
		return nil
	}

	return &withConstraintName{cause: err, constraint: constraint}
}

// GetConstraintName returns the constraint name inside the given error, if any.
func GetConstraintName(err error) string {
	if c, ok := err.(*withConstraintName); ok {
		return c.constraint
	}

	if n := stderrors.Unwrap(err); n != nil {
		return GetConstraintName(n)
	}

	return ""
}

type withConstraintName struct {
	cause      error
	constraint string
}

func (w *withConstraintName) Error() string { return w.cause.Error() }
func (w *withConstraintName) Unwrap() error { return w.cause }
