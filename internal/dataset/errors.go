package dataset

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can pick a status code
// without inspecting error strings.
type Kind int

const (
	KindInternal Kind = iota
	KindNotLoaded
	KindUnauthorized
	KindNotFound
	KindBadInput
	KindPayloadTooLarge
	KindUnsupportedType
	KindBusy
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindNotLoaded:       "not_loaded",
	KindUnauthorized:    "unauthorized",
	KindNotFound:        "not_found",
	KindBadInput:        "bad_input",
	KindPayloadTooLarge: "payload_too_large",
	KindUnsupportedType: "unsupported_type",
	KindBusy:            "busy",
}

// String returns the snake_case kind name used in logs.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed failure carrying a caller-facing message.
// Err, when set, is the underlying technical cause and is kept for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the client-facing message, or the cause when there is none.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the technical cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so callers can write
// errors.Is(err, dataset.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons. They match any error of the same kind.
var (
	ErrNotLoaded       = &Error{Kind: KindNotLoaded}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrBadInput        = &Error{Kind: KindBadInput}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrUnsupportedType = &Error{Kind: KindUnsupportedType}
	ErrBusy            = &Error{Kind: KindBusy}
)

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a technical cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func columnNotFound(name string) *Error {
	return Errorf(KindNotFound, "Column '%s' not found.", name)
}
