package model

import "fmt"

// Kind is the error taxonomy from the error handling design. It is a
// closed set of stable strings so they can be surfaced directly to
// callers (dispatch replies, CLI exit codes) without leaking internals.
type Kind string

const (
	KindInvalidFormat Kind = "InvalidFormat"
	KindNotFound      Kind = "NotFound"
	KindValidation    Kind = "Validation"
	KindFetch         Kind = "Fetch"
	KindTimeout       Kind = "Timeout"
	KindNoContext     Kind = "NoContext"
	KindPrecheck      Kind = "Precheck"
	KindStore         Kind = "Store"
	KindCancelled     Kind = "Cancelled"
)

// Error is the structured error type threaded through every component.
// Msg is short and stable enough to show a user; Err, if present, is the
// wrapped cause kept only for structured logging, never for display.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, target) report true when target is a *Error
// with the same Kind; Msg and the wrapped cause are not compared.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// AsKind extracts the Kind of err if it is (or wraps) a *Error, with ok
// reporting whether one was found.
func AsKind(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}
