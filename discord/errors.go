package discord

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Discord REST API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("discord: %s returned %d: %s", e.Endpoint, e.StatusCode, body)
}

func statusOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// IsPermissionError reports whether err is a 401/403 API response.
func IsPermissionError(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusUnauthorized || status == http.StatusForbidden)
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	status, ok := statusOf(err)
	return ok && status == http.StatusNotFound
}

// IsWrongEndpoint reports whether err looks like the route itself was
// rejected (wrong shape for this server), rather than a transient or
// auth problem.
func IsWrongEndpoint(err error) bool {
	status, ok := statusOf(err)
	return ok && (status == http.StatusBadRequest ||
		status == http.StatusNotFound ||
		status == http.StatusMethodNotAllowed)
}

// IsRateLimited reports whether err is a 429 API response.
func IsRateLimited(err error) bool {
	status, ok := statusOf(err)
	return ok && status == http.StatusTooManyRequests
}
