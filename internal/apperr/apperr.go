// Package apperr carries typed failures across the catalog, manifest, and
// login components so the host layer can map each kind to a distinct outcome
// instead of pattern-matching on message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput: malformed caller input (e.g. a stream URL with no
	// trailing media id). Never retried; no network call was made.
	KindInvalidInput
	// KindNotAuthenticated: no active session in the store.
	KindNotAuthenticated
	// KindSessionExpired: the validation endpoint rejected the session (401).
	KindSessionExpired
	// KindUpstream: non-success transport status or unparseable body from a
	// portal endpoint.
	KindUpstream
	// KindApplication: the portal returned a well-formed response with a
	// non-zero embedded error code.
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindSessionExpired:
		return "session_expired"
	case KindUpstream:
		return "upstream_unavailable"
	case KindApplication:
		return "application_error"
	default:
		return "unknown"
	}
}

// Error is a typed failure. Code carries the HTTP status for upstream
// failures and the embedded application error code otherwise; 0 means none.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithCode returns an Error carrying a numeric code.
func WithCode(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf returns the Kind of err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the numeric code of err, or 0.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
