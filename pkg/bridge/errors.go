package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a resolve did not produce a payload.
type ErrorKind string

const (
	// KindValidation means the key or action was rejected before any I/O.
	KindValidation ErrorKind = "validation"

	// KindTransport means no response was obtained from GitHub.
	KindTransport ErrorKind = "transport"

	// KindUpstream means GitHub answered with something other than a usable 200.
	KindUpstream ErrorKind = "upstream"
)

// MessageInvalidUpstream is reported when GitHub returns 200 with a body
// that cannot be cached.
const MessageInvalidUpstream = "Invalid response from upstream"

// Error describes a failed resolve.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (%d): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Code: http.StatusBadRequest, Message: message, Err: err}
}

func transportError(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Code:    http.StatusServiceUnavailable,
		Message: "Transport error: " + err.Error(),
		Err:     err,
	}
}

func upstreamError(code int, message string) *Error {
	return &Error{Kind: KindUpstream, Code: code, Message: message}
}

// ErrorBody renders the {"error": message} descriptor.
func ErrorBody(message string) json.RawMessage {
	b, err := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: message})
	if err != nil {
		// A string always marshals
		panic(err)
	}
	return b
}
