package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the trade pipeline can surface. Handlers
// map kinds to HTTP statuses; the engine maps collaborator errors to kinds.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindSymbolNotFound
	KindUpstreamUnavailable
	KindPriceUnavailable
	KindRiskBlocked
	KindCredentialsMissing
	KindVenueRejected
	KindVenueTimeout
	KindNotFound
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindSymbolNotFound:
		return "symbol_not_found"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindPriceUnavailable:
		return "price_unavailable"
	case KindRiskBlocked:
		return "risk_blocked"
	case KindCredentialsMissing:
		return "credentials_missing"
	case KindVenueRejected:
		return "venue_rejected"
	case KindVenueTimeout:
		return "venue_timeout"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// HTTPStatus is the status a handler should answer with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest, KindSymbolNotFound, KindPriceUnavailable,
		KindCredentialsMissing, KindVenueRejected:
		return http.StatusBadRequest
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindRiskBlocked:
		return http.StatusForbidden
	case KindVenueTimeout:
		return http.StatusGatewayTimeout
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind plus a caller-facing reason. The wrapped error keeps
// collaborator detail for logs.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a new typed error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to a collaborator error.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the caller-facing reason, or a generic message when the
// error is untyped.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "trade failed"
}
