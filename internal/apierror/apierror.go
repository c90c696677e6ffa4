// Package apierror defines the error taxonomy shared by the Contents and
// Checkpoint managers and translated to HTTP status codes by the façade.
package apierror

import "fmt"

// Kind identifies which bucket of the error taxonomy an Error belongs to.
type Kind string

const (
	// NotFound means a path or checkpoint id does not exist.
	NotFound Kind = "not_found"
	// BadType means the requested type is incompatible with the actual entry.
	BadType Kind = "bad_type"
	// BadFormat means text was requested on non-UTF-8 bytes, or the format is unknown.
	BadFormat Kind = "bad_format"
	// BadRequest covers hidden-name creation, copy_from on PUT, and copying a directory.
	BadRequest Kind = "bad_request"
	// Conflict means a rename target already exists.
	Conflict Kind = "conflict"
	// Internal covers filesystem errors that don't fit any of the above.
	Internal Kind = "internal"
)

// Error is the typed error returned by the managers. The HTTP façade is the
// single place that maps Kind to a status code (see spec §7/§9).
type Error struct {
	Kind    Kind
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Reason)
	}
	return e.Message
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Internal error carrying the cause as Reason, without
// leaking the underlying OS error string as the primary message (§7).
func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Reason: err.Error()}
}

// NotFoundf is a convenience constructor for the common NotFound case.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

// As reports whether err is an *Error and returns it.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
