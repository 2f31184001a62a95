// Package drive provides an HTTP client for the Google Drive v3 API
// with automatic retry, client-side rate limiting, and error classification.
package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, drive.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("drive: bad request")
	ErrUnauthorized = errors.New("drive: unauthorized")
	ErrForbidden    = errors.New("drive: forbidden")
	ErrNotFound     = errors.New("drive: not found")
	ErrRateLimited  = errors.New("drive: rate limited")
	ErrQuota        = errors.New("drive: storage quota exceeded")
	ErrServerError  = errors.New("drive: server error")
)

// Drive v3 error reasons that matter for retry and quota decisions.
// A 403 is usually fatal, except when the reason marks per-user throttling.
const (
	reasonRateLimit     = "rateLimitExceeded"
	reasonUserRateLimit = "userRateLimitExceeded"
	reasonQuotaExceeded = "storageQuotaExceeded"
)

// APIError wraps a sentinel error with the HTTP status code and the reason
// string from the Drive error body, for debugging and retry decisions.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("drive: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody mirrors the Drive v3 error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// newAPIError parses a Drive error response body into an APIError.
// Unparseable bodies keep the raw text as the message.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(body),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Code != 0 {
		apiErr.Message = eb.Error.Message
		if len(eb.Error.Errors) > 0 {
			apiErr.Reason = eb.Error.Errors[0].Reason
		}
	}

	apiErr.Err = classify(statusCode, apiErr.Reason)

	return apiErr
}

// classify maps a status code and Drive reason to a sentinel error.
func classify(code int, reason string) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		switch reason {
		case reasonRateLimit, reasonUserRateLimit:
			return ErrRateLimited
		case reasonQuotaExceeded:
			return ErrQuota
		}

		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsTransient reports whether err is worth retrying: network-level failures,
// throttling, and 5xx-class responses. Authorization rejections, quota
// exhaustion, and missing parents fail immediately.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if errors.Is(apiErr.Err, ErrRateLimited) || errors.Is(apiErr.Err, ErrServerError) {
			return true
		}

		return apiErr.StatusCode == http.StatusRequestTimeout
	}

	// Non-APIError failures from the transport layer (timeouts, resets)
	// are network errors and therefore transient.
	return err != nil
}
