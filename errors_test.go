package delegate

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAuthErrorMatchingByCode(t *testing.T) {
	err := ErrInvalidGrant("authorization code expired")

	if !errors.Is(err, ErrInvalidGrant("any description")) {
		t.Error("errors with the same code must match regardless of description")
	}
	if errors.Is(err, ErrInvalidClient("")) {
		t.Error("errors with different codes must not match")
	}

	// Matching survives wrapping
	wrapped := fmt.Errorf("redeem failed: %w", err)
	if !errors.Is(wrapped, ErrInvalidGrant("")) {
		t.Error("wrapped errors must still match by code")
	}
}

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(ErrInsufficientScope("missing calendar.read")); got != ErrorCodeInsufficientScope {
		t.Errorf("ErrorCode = %q, want %q", got, ErrorCodeInsufficientScope)
	}
	if got := ErrorCode(fmt.Errorf("plain error")); got != "" {
		t.Errorf("ErrorCode for a non-AuthError = %q, want empty", got)
	}
	if got := ErrorCode(nil); got != "" {
		t.Errorf("ErrorCode(nil) = %q, want empty", got)
	}
}

func TestErrorStatusTaxonomy(t *testing.T) {
	tests := []struct {
		err    *AuthError
		status int
	}{
		// Authentication failures: the caller's identity or artifact did
		// not check out
		{ErrInvalidClient("x"), http.StatusUnauthorized},
		{ErrInvalidCredentials("x"), http.StatusUnauthorized},
		{ErrMalformedToken("x"), http.StatusUnauthorized},
		{ErrInvalidSignature("x"), http.StatusUnauthorized},
		{ErrTokenExpired("x"), http.StatusUnauthorized},

		// Authorization failures: a valid artifact without the authority
		{ErrWrongTokenType("x"), http.StatusForbidden},
		{ErrInsufficientScope("x"), http.StatusForbidden},
		{ErrAccessDenied("x"), http.StatusForbidden},

		// Request failures
		{ErrInvalidRequest("x"), http.StatusBadRequest},
		{ErrInvalidGrant("x"), http.StatusBadRequest},
		{ErrInvalidScope("x"), http.StatusBadRequest},
		{ErrInvalidRedirectURI("x"), http.StatusBadRequest},
		{ErrUnsupportedGrantType("x"), http.StatusBadRequest},
		{ErrUnsupportedResponseType("x"), http.StatusBadRequest},

		{ErrServerError("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if tt.err.Status != tt.status {
				t.Errorf("%s status = %d, want %d", tt.err.Code, tt.err.Status, tt.status)
			}
		})
	}
}

func TestAuthErrorMessage(t *testing.T) {
	err := ErrInvalidScope("requested scope exceeds the granting token")
	want := "invalid_scope: requested scope exceeds the granting token"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
