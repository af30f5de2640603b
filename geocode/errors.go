// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyQuery is returned when a query has no address after trimming.
var ErrEmptyQuery = errors.New("empty query")

// BackendError represents a failure reported by the geocoding backend.
type BackendError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies backend errors.
type ErrorType int

const (
	// ErrorTypeUnknown unknown error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit rate limit reached.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded token quota exceeded or access denied.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout connection timeout.
	ErrorTypeTimeout
	// ErrorTypeNotFound resource or sample not found.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest invalid request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError network or upstream failure.
	ErrorTypeNetworkError
	// ErrorTypePreview the preview endpoint answered with an error field.
	ErrorTypePreview
)

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error to the status the web server answers with.
func (e *BackendError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func isType(err error, t ErrorType) bool {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Type == t
	}

	return false
}

// IsRateLimitError reports whether err is caused by rate limiting.
func IsRateLimitError(err error) bool {
	if isType(err, ErrorTypeRateLimit) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsTimeoutError reports whether err is caused by a timeout.
func IsTimeoutError(err error) bool {
	if isType(err, ErrorTypeTimeout) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsPreviewError reports whether the preview endpoint rejected the resource.
func IsPreviewError(err error) bool {
	return isType(err, ErrorTypePreview)
}

// ClassifyHTTPError turns a non-200 backend status into a BackendError.
func ClassifyHTTPError(statusCode int, body string) *BackendError {
	var e *BackendError

	switch statusCode {
	case http.StatusTooManyRequests:
		e = &BackendError{Type: ErrorTypeRateLimit, Message: "rate limit reached"}
	case http.StatusUnauthorized, http.StatusForbidden:
		e = &BackendError{Type: ErrorTypeQuotaExceeded, Message: "quota exceeded or access denied"}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e = &BackendError{Type: ErrorTypeInvalidRequest, Message: "invalid request"}
	case http.StatusNotFound:
		e = &BackendError{Type: ErrorTypeNotFound, Message: "not found"}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		e = &BackendError{Type: ErrorTypeTimeout, Message: fmt.Sprintf("backend timeout (status %d)", statusCode)}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		e = &BackendError{Type: ErrorTypeNetworkError, Message: fmt.Sprintf("backend unavailable (status %d)", statusCode)}
	default:
		e = &BackendError{Type: ErrorTypeUnknown, Message: fmt.Sprintf("HTTP error %d", statusCode)}
	}

	if body = strings.TrimSpace(body); body != "" {
		e.Err = errors.New(body)
	}

	return e
}
