package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	// ErrorTypeNetwork covers transport-level failures: connection errors,
	// timeouts, and truncated response bodies. Retryable.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeAPI is a non-2xx response from the metadata endpoint.
	// Fatal to the whole run, never retried.
	ErrorTypeAPI ErrorType = "api"
	// ErrorTypeDownloadExhausted means all retry attempts for one media
	// fetch failed. The post is skipped, the run continues.
	ErrorTypeDownloadExhausted ErrorType = "download_exhausted"
	// ErrorTypeDecode means media bytes did not decode as a known image
	// format when one was expected. The post is skipped.
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeFilesystem is a failed artifact or sidecar write. The post
	// is skipped.
	ErrorTypeFilesystem ErrorType = "filesystem"
	// ErrorTypeUnknown is anything unclassified.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error without an HTTP code
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithCode creates a typed error carrying an HTTP status code
func NewWithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeAPI, ErrorTypeDownloadExhausted, ErrorTypeDecode, ErrorTypeFilesystem:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
