package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different classes of fetch failures
type ErrorType string

const (
	// ErrorTypeRateLimit is a 429 response, retried after the server-suggested wait
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTransient covers network faults and timeouts, retried with backoff
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeHard is any other non-200 status, never retried
	ErrorTypeHard ErrorType = "hard"
	// ErrorTypeRetriesExhausted is terminal after the attempt budget is consumed
	ErrorTypeRetriesExhausted ErrorType = "retries_exhausted"
	// ErrorTypeInvalidPayload is a 200 response that cannot become a product record
	ErrorTypeInvalidPayload ErrorType = "invalid_payload"
	// ErrorTypeCancelled is returned when the run context ends mid-fetch
	ErrorTypeCancelled ErrorType = "cancelled"
)

// Messages written into FetchFailure.error
const (
	MsgMaxRetriesExceeded = "Max retries exceeded"
	MsgMissingID          = "Response missing product id"
	MsgCancelled          = "Fetch cancelled"
)

// ErrMaxRetries is the sentinel wrapped by retries-exhausted errors
var ErrMaxRetries = errors.New(MsgMaxRetriesExceeded)

// Error represents a classified fetch error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimit, ErrorTypeTransient:
		return true
	default:
		return false
	}
}

// TypeOf returns the ErrorType carried by err, or "" when err is not classified
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// HardStatusMessage renders the failure text for a non-retryable status
func HardStatusMessage(status int) string {
	return fmt.Sprintf("API returned status %d", status)
}

// ClassifyStatus maps an HTTP status code to an error type. 200 yields "".
func ClassifyStatus(statusCode int) ErrorType {
	switch statusCode {
	case http.StatusOK:
		return ""
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	default:
		return ErrorTypeHard
	}
}
