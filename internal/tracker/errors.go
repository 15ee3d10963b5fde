package tracker

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("tracker credentials rejected")
	ErrNotFound     = errors.New("tracker resource not found")
	ErrForbidden    = errors.New("tracker access forbidden")
	ErrGone         = errors.New("tracker resource gone")
	ErrRateLimited  = errors.New("tracker rate limit exceeded")
)

// APIError is a non-success response. errors.Is matches the sentinel for its status.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tracker API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("tracker API error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyResponse maps a failed response to an APIError.
// 429, and 403 with an exhausted quota or a secondary limit message, are rate limits.
func classifyResponse(statusCode int, header http.Header, message string) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: message}

	switch {
	case statusCode == http.StatusTooManyRequests:
		apiErr.Err = ErrRateLimited
	case statusCode == http.StatusForbidden && isRateLimited(header, message):
		apiErr.Err = ErrRateLimited
	case statusCode == http.StatusUnauthorized:
		apiErr.Err = ErrUnauthorized
	case statusCode == http.StatusForbidden:
		apiErr.Err = ErrForbidden
	case statusCode == http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case statusCode == http.StatusGone:
		apiErr.Err = ErrGone
	}
	return apiErr
}

func isRateLimited(header http.Header, message string) bool {
	if header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	if header.Get("Retry-After") != "" {
		return true
	}
	return strings.Contains(strings.ToLower(message), "rate limit")
}
