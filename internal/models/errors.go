package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPastSchedule      = errors.New("scheduled time must be in the future")
	ErrContentNotFound   = errors.New("content not found")
	ErrEmptyContent      = errors.New("content text is empty")
	ErrBatchTooLarge     = errors.New("batch exceeds maximum size")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidRule       = errors.New("invalid posting rule")
	ErrInvalidPrefs      = errors.New("invalid scheduling preferences")
	ErrInvalidStatus     = errors.New("invalid post status")
)

// IsValidation reports whether err is a caller mistake rather than a system failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPastSchedule) ||
		errors.Is(err, ErrContentNotFound) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrBatchTooLarge) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidPrefs) ||
		errors.Is(err, ErrInvalidStatus)
}

const (
	CodeTweetTooLong   = "TWEET_TOO_LONG"
	CodeNoAccessToken  = "NO_ACCESS_TOKEN"
	CodeRateLimited    = "RATE_LIMITED"
	CodeServerError    = "SERVER_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeBadRequest     = "BAD_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeNetworkError   = "NETWORK_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeCircuitOpen    = "CIRCUIT_OPEN"
	CodeUnexpected     = "UNEXPECTED_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeStaleClaim     = "STALE_CLAIM"
)

// PublishError is a posting failure already classified as retryable or fatal.
type PublishError struct {
	HTTPStatus int
	Code       string
	Message    string
	Retryable  bool
}

func (e *PublishError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PublishError) PostError() *PostError {
	return &PostError{Code: e.Code, Message: e.Message}
}

func NewFatalError(code, message string) *PublishError {
	return &PublishError{Code: code, Message: message}
}

func NewRetryableError(code, message string) *PublishError {
	return &PublishError{Code: code, Message: message, Retryable: true}
}

// ClassifyHTTPStatus maps an error response to a PublishError. 429 and 5xx are retryable,
// every other 4xx is fatal.
func ClassifyHTTPStatus(status int, message string) *PublishError {
	e := &PublishError{HTTPStatus: status, Message: message}
	switch {
	case status == http.StatusTooManyRequests:
		e.Code, e.Retryable = CodeRateLimited, true
	case status >= 500:
		e.Code, e.Retryable = CodeServerError, true
	case status == http.StatusUnauthorized:
		e.Code = CodeUnauthorized
	case status == http.StatusForbidden:
		e.Code = CodeForbidden
	case status == http.StatusNotFound:
		e.Code = CodeNotFound
	case status >= 400:
		e.Code = CodeBadRequest
	default:
		e.Code = CodeUnexpected
	}
	return e
}

// AsPublishError extracts a classified error. Anything unclassified is treated as retryable.
func AsPublishError(err error) *PublishError {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe
	}
	return NewRetryableError(CodeUnexpected, err.Error())
}
