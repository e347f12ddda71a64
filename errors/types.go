// Package errors defines the error taxonomy for analysis operations.
// Quota exhaustion and cache misses are normal decision outcomes and are
// never represented as errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies an analysis error.
type ErrorType string

const (
	// TypeTransport covers connection failures and timeouts.
	TypeTransport ErrorType = "transport"
	// TypeServer covers 5xx responses from the remote provider.
	TypeServer ErrorType = "server"
	// TypeClient covers 4xx responses; the request itself is wrong.
	TypeClient ErrorType = "client"
	// TypeDecode covers malformed response bodies.
	TypeDecode ErrorType = "decode"
	// TypeScorer covers failures of the local scoring stage.
	TypeScorer ErrorType = "scorer"
	// TypeConfig covers invalid configuration.
	TypeConfig ErrorType = "config"
)

// AnalysisError is the standardized error for all analysis operations.
type AnalysisError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Cause      error
	Retryable  bool
	RetryAfter time.Duration
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a retriable transport-level error.
func NewTransportError(cause error) *AnalysisError {
	return &AnalysisError{
		Type:      TypeTransport,
		Message:   "transport failure",
		Cause:     cause,
		Retryable: true,
	}
}

// NewServerError creates a retriable server error for a 5xx status.
func NewServerError(statusCode int, message string) *AnalysisError {
	return &AnalysisError{
		Type:       TypeServer,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  true,
	}
}

// NewClientError creates a terminal client error for a 4xx status.
func NewClientError(statusCode int, message string) *AnalysisError {
	return &AnalysisError{
		Type:       TypeClient,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  false,
	}
}

// NewDecodeError creates a terminal error for a malformed response
// body. Retrying will not fix a malformed payload.
func NewDecodeError(cause error) *AnalysisError {
	return &AnalysisError{
		Type:      TypeDecode,
		Message:   "malformed response body",
		Cause:     cause,
		Retryable: false,
	}
}

// NewScorerError creates a terminal error for a local scoring failure.
func NewScorerError(cause error) *AnalysisError {
	return &AnalysisError{
		Type:      TypeScorer,
		Message:   "local scoring failed",
		Cause:     cause,
		Retryable: false,
	}
}

// NewConfigError creates a terminal configuration error.
func NewConfigError(message string) *AnalysisError {
	return &AnalysisError{
		Type:      TypeConfig,
		Message:   message,
		Retryable: false,
	}
}

// FromStatus classifies an HTTP status code into an AnalysisError.
// 4xx is terminal, 5xx is retriable.
func FromStatus(statusCode int, message string) *AnalysisError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	if statusCode >= 400 && statusCode < 500 {
		return NewClientError(statusCode, message)
	}
	return NewServerError(statusCode, message)
}

// IsRetryable reports whether err may succeed on a subsequent attempt.
func IsRetryable(err error) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}
