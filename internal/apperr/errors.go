package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned across a component boundary wraps exactly
// one of the top-level kinds so callers can branch with errors.Is.
var (
	// ErrConfiguration means a required client id, secret, redirect or API key is absent.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthorization means no usable credential exists or the provider rejected the grant.
	ErrAuthorization = errors.New("authorization error")

	// ErrTransport means a network or provider failure.
	ErrTransport = errors.New("transport error")

	// ErrResponseFormat means the model answered with something that is not the expected result.
	ErrResponseFormat = errors.New("response format error")
)

// Aliases used by the component APIs.
var (
	ErrMisconfigured = ErrConfiguration
	ErrNotAuthorized = ErrAuthorization
)

// Response format children.
var (
	ErrMalformedResponse  = fmt.Errorf("%w: malformed response", ErrResponseFormat)
	ErrIncompleteResponse = fmt.Errorf("%w: incomplete response", ErrResponseFormat)
)

// Codes reported in JSON error bodies and metric labels.
const (
	CodeConfiguration  = "CONFIG_ERROR"
	CodeAuthorization  = "UNAUTHORIZED"
	CodeTransport      = "EXTERNAL_ERROR"
	CodeResponseFormat = "RESPONSE_FORMAT"
	CodeInternal       = "INTERNAL_ERROR"
)

// Error attaches an operation name and a kind to an underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// E builds an *Error. A nil err yields an error carrying only the kind.
func E(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns the code for the kind err belongs to.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrTransport):
		return CodeTransport
	case errors.Is(err, ErrResponseFormat):
		return CodeResponseFormat
	default:
		return CodeInternal
	}
}

// HTTPStatus maps err to the status an HTTP handler should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthorization):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
