// Package sndchkerr implements the error-kind taxonomy every component of
// the engine uses to decide whether a failure is fatal, retryable, or a
// plain "no data" result (see spec §7).
package sndchkerr

import (
	"errors"
	"fmt"
)

// Kind distinguishes the failure categories the core must tell apart.
type Kind int

const (
	// KindUnknown is the zero value; never constructed deliberately.
	KindUnknown Kind = iota
	// KindResource marks allocation failure or OS resource exhaustion. Fatal.
	KindResource
	// KindDecode marks an audio decoder returning invalid data for one stream.
	KindDecode
	// KindNetwork marks a transport error other than an HTTP status.
	KindNetwork
	// KindTimeout is a subclass of KindNetwork.
	KindTimeout
	// KindParse marks a malformed response body.
	KindParse
	// KindNotFound marks an HTTP 404 or equivalent, cached as legitimate.
	KindNotFound
	// KindClock marks a time source failure. Fatal for rate limiting.
	KindClock
	// KindInconsistent marks an internally detected precondition violation.
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindResource:
		return "resource"
	case KindDecode:
		return "decode"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "notfound"
	case KindClock:
		return "clock"
	case KindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and optional context, so
// callers can branch with errors.As instead of parsing strings.
type Error struct {
	Kind    Kind
	Service string // e.g. "accuraterip", "musicbrainz"; empty if not service-scoped
	Context string // free-form extra context (release id, stream index, ...)
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Service != "" {
		msg = e.Service + ": " + msg
	}
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind wrapping cause, with an empty
// Context (see WithContext to add one).
func New(kind Kind, service string, cause error) *Error {
	return &Error{Kind: kind, Service: service, Cause: cause}
}

// WithContext returns a copy of e annotated with additional context.
func (e *Error) WithContext(ctx string) *Error {
	cp := *e
	if cp.Context == "" {
		cp.Context = ctx
	} else {
		cp.Context = cp.Context + "; " + ctx
	}
	return &cp
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether a Mediator dispatcher should retry a request
// that failed with err (network/timeout only — parse and notfound are
// terminal-but-cacheable, per §7 propagation policy).
func Retryable(err error) bool {
	return Is(err, KindNetwork) || Is(err, KindTimeout)
}

// Fatal reports whether err must abort the whole run (§7: resource, clock).
func Fatal(err error) bool {
	return Is(err, KindResource) || Is(err, KindClock)
}

// Errorf is a convenience constructor: an Error of the given kind whose
// cause is fmt.Errorf(format, args...), so %w wraps as it does there.
func Errorf(kind Kind, service, format string, args ...any) *Error {
	return &Error{Kind: kind, Service: service, Cause: fmt.Errorf(format, args...)}
}
