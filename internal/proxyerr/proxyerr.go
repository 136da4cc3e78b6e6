package proxyerr

import (
	"errors"
	"fmt"
)

// Kind classifies a proxy failure. The API layer maps kinds to HTTP
// statuses; nothing below the API layer knows about HTTP status codes
// on the serving side.
type Kind string

const (
	KindInvalidRequest   Kind = "INVALID_REQUEST"
	KindForbiddenTarget  Kind = "FORBIDDEN_TARGET"
	KindBadUpstream      Kind = "BAD_UPSTREAM"
	KindTooManyRedirects Kind = "TOO_MANY_REDIRECTS"
	KindRetriesExhausted Kind = "UPSTREAM_RETRIABLE"
	KindInvalidPayload   Kind = "INVALID_UPSTREAM_PAYLOAD"
	KindUnsupportedImage Kind = "UNSUPPORTED_IMAGE_FORMAT"
	KindUpstreamFetch    Kind = "UPSTREAM_FETCH_FAILED"
	KindInternal         Kind = "INTERNAL_UNEXPECTED"
)

// Error is the typed failure returned by every component in this service.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int // non-zero when the upstream's HTTP status is meaningful
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}
