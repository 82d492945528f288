package microsoft

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error types for D365 OData responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("dynamics: unauthorised")

	// ErrForbidden indicates the application user lacks a security role for the resource.
	ErrForbidden = errors.New("dynamics: forbidden")

	// ErrNotFound indicates the entity set or record does not exist.
	ErrNotFound = errors.New("dynamics: not found")

	// ErrRateLimited indicates the request was throttled by service protection limits.
	ErrRateLimited = errors.New("dynamics: rate limited")

	// ErrBadRequest indicates the request was malformed, typically a bad $filter.
	ErrBadRequest = errors.New("dynamics: bad request")

	// ErrRequestTimeout indicates the server timed out waiting for the request.
	ErrRequestTimeout = errors.New("dynamics: request timeout")

	// ErrServerError indicates a server-side error from D365.
	ErrServerError = errors.New("dynamics: server error")

	// ErrClientError indicates any other 4xx response.
	ErrClientError = errors.New("dynamics: client error")
)

// WrapError converts an HTTP status code to an appropriate error.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusRequestTimeout:
		return ErrRequestTimeout
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		if statusCode >= 400 {
			return ErrClientError
		}
		return nil
	}
}

// IsUnauthorised checks if the status code indicates an authentication failure.
func IsUnauthorised(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// IsRetryable checks if the status is transient: request timeout, throttling,
// or any server error.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= 500
}

// RetryAfter parses a Retry-After header given either as delay seconds or as
// an HTTP date. ok is false when the header is absent or unparseable.
func RetryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(header)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// ODataErrorBody is the error envelope returned by D365 OData endpoints.
type ODataErrorBody struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"innererror,omitempty"`
	} `json:"error"`
}

// ParseErrorBody extracts the code and message from an OData error body.
// Both are empty when the body is not an OData error envelope.
func ParseErrorBody(body []byte) (code, message string) {
	var env ODataErrorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return "", ""
	}
	message = env.Error.Message
	if message == "" && env.Error.InnerError != nil {
		message = env.Error.InnerError.Message
	}
	return env.Error.Code, message
}
