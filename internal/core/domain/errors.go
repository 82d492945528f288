package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrInvalidInput indicates a caller-supplied argument failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCrossCompanyUnsupported indicates a cross-company query was requested
	// against a product without legal-entity partitions.
	ErrCrossCompanyUnsupported = errors.New("cross-company queries are only supported by Finance & Operations")

	// ErrNotConfigured indicates required configuration is missing.
	ErrNotConfigured = errors.New("not configured")

	// ErrNotFound indicates a declared entity set lookup failed.
	ErrNotFound = errors.New("not found")
)

// AuthError is a token acquisition failure reported by the identity provider
// or the transport in front of it. It is terminal for the call that saw it.
type AuthError struct {
	// AuthType is the identity provider flavour that failed.
	AuthType AuthType
	// StatusCode is the HTTP status of the token response, 0 on transport errors.
	StatusCode int
	// Code is the OAuth2 error code (e.g. invalid_client).
	Code string
	// Description is the provider's error_description.
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s token request failed", e.AuthType)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Code == "" && e.Description == "" && e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// QueryErrorKind classifies a failed data request.
type QueryErrorKind int

const (
	// QueryRejected is a non-transient 4xx from the data endpoint.
	QueryRejected QueryErrorKind = iota + 1
	// QueryExhausted means transient failures outlasted the retry budget.
	QueryExhausted
	// QueryDecode means the response body was not the expected JSON envelope.
	QueryDecode
)

func (k QueryErrorKind) String() string {
	switch k {
	case QueryRejected:
		return "rejected"
	case QueryExhausted:
		return "exhausted"
	case QueryDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// QueryError is a failed data request.
type QueryError struct {
	Kind QueryErrorKind
	// StatusCode is the last HTTP status seen, 0 for transport failures.
	StatusCode int
	// Code and Message come from the OData error envelope when present.
	Code    string
	Message string
	// Body is the raw (bounded) server response for Rejected errors.
	Body string
	// Attempts is the number of HTTP attempts made.
	Attempts int
	Err      error
}

func (e *QueryError) Error() string {
	var msg string
	switch e.Kind {
	case QueryRejected:
		msg = fmt.Sprintf("request rejected with status %d", e.StatusCode)
	case QueryExhausted:
		msg = fmt.Sprintf("request failed after %d attempts", e.Attempts)
		if e.StatusCode != 0 {
			msg += fmt.Sprintf(" (last status %d)", e.StatusCode)
		}
	case QueryDecode:
		msg = "decode response"
	default:
		msg = "query failed"
	}
	switch {
	case e.Code != "" && e.Message != "":
		msg += ": " + e.Code + ": " + e.Message
	case e.Message != "":
		msg += ": " + e.Message
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryErrorKind reports whether err is a QueryError of the given kind.
func IsQueryErrorKind(err error, kind QueryErrorKind) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Kind == kind
}
