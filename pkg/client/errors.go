package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the GitHub quota is exhausted locally.
	ErrRateLimited = errors.New("GitHub rate limit exhausted")
)

// ErrorClass represents a classification of failed GitHub calls.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents an exhausted GitHub quota.
	ErrorClassRateLimit ErrorClass = "rate_limited"

	// ErrorClassTimeout represents requests that hit the client timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassDNS represents name resolution failures.
	ErrorClassDNS ErrorClass = "dns"

	// ErrorClassConnection represents refused or reset connections.
	ErrorClassConnection ErrorClass = "connection"

	// ErrorClassTLS represents handshake and certificate failures.
	ErrorClassTLS ErrorClass = "tls"

	// ErrorClassCanceled represents requests canceled by the caller.
	ErrorClassCanceled ErrorClass = "canceled"

	// ErrorClassNetwork represents any other transport failure.
	ErrorClassNetwork ErrorClass = "network"
)

// TransportError is returned when no HTTP response was obtained from GitHub.
type TransportError struct {
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("(%s): %v", e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyTransportError maps a failed http.Client.Do to an ErrorClass.
func classifyTransportError(err error) ErrorClass {
	var (
		dnsErr     *net.DNSError
		netErr     net.Error
		opErr      *net.OpError
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)

	switch {
	case errors.Is(err, ErrRateLimited):
		return ErrorClassRateLimit
	case errors.Is(err, context.Canceled):
		return ErrorClassCanceled
	case errors.As(err, &dnsErr):
		return ErrorClassDNS
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrorClassTimeout
	case errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr):
		return ErrorClassTLS
	case errors.As(err, &opErr):
		return ErrorClassConnection
	default:
		return ErrorClassNetwork
	}
}

// classifyStatus categorizes a non-200 GitHub response for metrics.
func classifyStatus(resp *http.Response) ErrorClass {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if a transport failure should be retried.
// HTTP responses are never retried; they are passed through to the caller.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassTimeout, ErrorClassConnection, ErrorClassDNS, ErrorClassNetwork:
		return true
	default:
		// rate_limited would burn quota, canceled has no caller left, tls will not heal
		return false
	}
}
