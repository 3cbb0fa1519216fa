package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

// Kind classifies failures surfaced to the caller.
type Kind string

const (
	KindNotFound      Kind = "NotFound"
	KindUnauthorized  Kind = "Unauthorized"
	KindUpstreamError Kind = "UpstreamError"
	KindInvalidInput  Kind = "InvalidInput"
)

// Sentinels usable with errors.Is.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrUpstream     = &Error{Kind: KindUpstreamError}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error is a structured failure: kind + message, with the Graph status/code when known.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so that errors.Is(err, ErrNotFound) works for any NotFound failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the failure kind of err, UpstreamError for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamError
}

// NotFound builds a NotFound failure.
func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a parameter validation failure.
func InvalidInput(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an Unauthorized failure.
func Unauthorized(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Message: fmt.Sprintf(format, args...)}
}

// kindForStatus maps HTTP status codes 1:1 onto the failure taxonomy.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindUpstreamError
	}
}

// statusError classifies a raw non-2xx REST response.
func statusError(op string, status int, code, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: kindForStatus(status), Op: op, Status: status, Code: code, Message: message}
}

// wrapError converts SDK/transport errors into *Error.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		ret := &Error{Kind: kindForStatus(odataErr.ResponseStatusCode), Op: op, Status: odataErr.ResponseStatusCode, Err: err}
		if main := odataErr.GetErrorEscaped(); main != nil {
			ret.Code = deref(main.GetCode())
			ret.Message = deref(main.GetMessage())
		}
		if ret.Message == "" {
			ret.Message = http.StatusText(odataErr.ResponseStatusCode)
		}
		return ret
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: KindUpstreamError, Op: op, Message: err.Error(), Err: err}
}
