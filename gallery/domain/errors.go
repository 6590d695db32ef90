package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the *Error carrying them adds context.
var (
	// ErrConstraint marks a reference to an image or tag that does not exist.
	ErrConstraint = errors.New("constraint violation")
	// ErrFetch marks an unreadable source: missing file, network failure, non-2xx response.
	ErrFetch = errors.New("fetch failed")
	// ErrUnsupportedType marks content that does not sniff as a supported image type.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrConflict marks a destination identifier that already exists.
	ErrConflict = errors.New("destination already exists")
	// ErrIO marks a local file write or remove failure.
	ErrIO = errors.New("i/o failure")
)

// ErrInvalidTag is returned when a tag name is empty or only whitespace.
var ErrInvalidTag = errors.New("invalid tag name")

// Error is the failure outcome of a core operation.
type Error struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

func ConstraintError(op, subject string, err error) error {
	return newError(ErrConstraint, op, subject, err)
}

func FetchError(op, subject string, err error) error {
	return newError(ErrFetch, op, subject, err)
}

func UnsupportedTypeError(op, subject string, err error) error {
	return newError(ErrUnsupportedType, op, subject, err)
}

func ConflictError(op, subject string, err error) error {
	return newError(ErrConflict, op, subject, err)
}

func IOError(op, subject string, err error) error {
	return newError(ErrIO, op, subject, err)
}

// KindOf returns the taxonomy kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrConstraint, ErrFetch, ErrUnsupportedType, ErrConflict, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func invalidTag(name string) error {
	return fmt.Errorf("%w: %q", ErrInvalidTag, name)
}
