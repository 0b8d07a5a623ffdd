package delegate

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the engine
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidClient       = "invalid_client"
	ErrorCodeInvalidGrant        = "invalid_grant"
	ErrorCodeInvalidScope        = "invalid_scope"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeInvalidRedirectURI  = "invalid_redirect_uri"
	ErrorCodeAccessDenied        = "access_denied"
	ErrorCodeMalformedToken      = "malformed_token"
	ErrorCodeInvalidSignature    = "invalid_signature"
	ErrorCodeTokenExpired        = "token_expired"
	ErrorCodeWrongTokenType      = "wrong_token_type"
	ErrorCodeInsufficientScope   = "insufficient_scope"
	ErrorCodeUnsupportedGrant    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponse = "unsupported_response_type"
	ErrorCodeServerError         = "server_error"
)

// AuthError is the discriminated outcome returned for every engine failure.
// Code identifies the failure kind, Description carries human-readable
// detail, and Status is the HTTP status a transport layer should map it to.
// Authorization failures (wrong type, insufficient scope) carry 403 so
// callers can distinguish "who are you" from "what are you allowed to do".
type AuthError struct {
	Code        string // stable failure kind (e.g., "invalid_grant")
	Description string // human-readable detail
	Status      int    // suggested HTTP status code
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is reports whether target is an AuthError with the same code.
// Descriptions are intentionally ignored so callers can match on kind.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewAuthError creates a new engine error
func NewAuthError(code, description string, status int) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// ErrorCode extracts the failure kind from an error returned by the engine.
// Returns "" if err is not an AuthError.
func ErrorCode(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Common errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates the client is unknown or its secret did not match
	ErrInvalidClient = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrInvalidGrant indicates the authorization code is unknown, expired, or already redeemed
	ErrInvalidGrant = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrInvalidScope indicates the requested scope is unsupported or exceeds the granting scope
	ErrInvalidScope = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrInvalidCredentials indicates a failed principal login; the caller may re-prompt
	ErrInvalidCredentials = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidCredentials, desc, http.StatusUnauthorized)
	}

	// ErrInvalidRedirectURI indicates the redirect URI is not registered for the client
	ErrInvalidRedirectURI = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidRedirectURI, desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the principal denied consent
	ErrAccessDenied = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeAccessDenied, desc, http.StatusForbidden)
	}

	// ErrMalformedToken indicates the token structure could not be decoded
	ErrMalformedToken = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeMalformedToken, desc, http.StatusUnauthorized)
	}

	// ErrInvalidSignature indicates the token signature does not match its claims
	ErrInvalidSignature = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidSignature, desc, http.StatusUnauthorized)
	}

	// ErrTokenExpired indicates the token is past its expiry
	ErrTokenExpired = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeTokenExpired, desc, http.StatusUnauthorized)
	}

	// ErrWrongTokenType indicates the token type does not match the verification context
	ErrWrongTokenType = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeWrongTokenType, desc, http.StatusForbidden)
	}

	// ErrInsufficientScope indicates the token lacks a required scope
	ErrInsufficientScope = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInsufficientScope, desc, http.StatusForbidden)
	}

	// ErrUnsupportedGrantType indicates the grant type is not "authorization_code"
	ErrUnsupportedGrantType = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeUnsupportedGrant, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedResponseType indicates the response type is not "code"
	ErrUnsupportedResponseType = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeUnsupportedResponse, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal failure
	ErrServerError = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}
)
