package whisper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCode is the fixed failure taxonomy for transcription calls. Every
// failure from the service is mapped to exactly one code at the HTTP
// boundary; nothing downstream inspects raw errors.
type ErrorCode string

const (
	CodeAuthError         ErrorCode = "auth_error"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeFileTooLarge      ErrorCode = "file_too_large"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeServerError       ErrorCode = "server_error"
	CodeTimeout           ErrorCode = "timeout"
	CodeUnknown           ErrorCode = "unknown"
)

// APIError is a classified transcription failure.
type APIError struct {
	Code    ErrorCode
	Status  int // HTTP status, 0 for transport failures
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transcription failed: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("transcription failed: %s: %s", e.Code, e.Message)
}

// Permanent reports whether retrying cannot change the outcome.
func (e *APIError) Permanent() bool {
	switch e.Code {
	case CodeAuthError, CodeUnsupportedFormat, CodeFileTooLarge:
		return true
	}
	return false
}

// classifyStatus maps a non-2xx response to an error code. Order matters:
// auth, rate limit, and payload size win over the generic 5xx bucket, and a
// format-rejection message is only consulted for the remaining 4xx codes.
func classifyStatus(status int, body string) *APIError {
	msg := strings.TrimSpace(body)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	var code ErrorCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeAuthError
	case status == http.StatusTooManyRequests:
		code = CodeRateLimited
	case status == http.StatusRequestEntityTooLarge:
		code = CodeFileTooLarge
	case status >= 500:
		code = CodeServerError
	case isFormatRejection(body):
		code = CodeUnsupportedFormat
	case status == http.StatusRequestTimeout:
		code = CodeTimeout
	default:
		code = CodeUnknown
	}
	return &APIError{Code: code, Status: status, Message: msg}
}

// classifyTransport maps request errors (no HTTP response) to an error code.
func classifyTransport(err error) *APIError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		isConnectionAbort(err):
		return &APIError{Code: CodeTimeout, Message: err.Error()}
	}
	return &APIError{Code: CodeUnknown, Message: err.Error()}
}

func isFormatRejection(body string) bool {
	s := strings.ToLower(body)
	return strings.Contains(s, "unsupported") ||
		strings.Contains(s, "invalid file format") ||
		strings.Contains(s, "could not be decoded") ||
		strings.Contains(s, "file format")
}

func isConnectionAbort(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "unexpected EOF")
}
