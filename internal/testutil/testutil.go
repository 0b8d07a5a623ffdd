// Package testutil provides testing utilities and helpers for the delegate library.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/agentauth/delegate/storage"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.now = t
}

// GenerateTestClient creates a test client registration
func GenerateTestClient() *storage.Client {
	return &storage.Client{
		ClientID:         "test-client-id",
		ClientSecretHash: "$2a$10$.VaWqlb6PwhxkIQdBqglKe0hqUYFCYnD0romG4CCDMdsfWJweIsQa", // hash of "secret"
		ClientName:       "Test Client",
		RedirectURIs:     []string{"https://example.com/callback"},
		Scopes:           []string{"calendar.read", "calendar.write", "mail.read"},
		CreatedAt:        time.Now(),
	}
}

// GenerateTestGrant creates a test grant in the login-pending state
func GenerateTestGrant() *storage.Grant {
	return &storage.Grant{
		ID:          GenerateRandomString(32),
		State:       storage.GrantStateLoginPending,
		ClientID:    "test-client-id",
		RedirectURI: "https://example.com/callback",
		Scopes:      []string{"calendar.read"},
		ClientState: GenerateRandomString(16),
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
}

// GenerateTestAuthorizationCode creates a test authorization code
func GenerateTestAuthorizationCode() *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:        GenerateRandomString(32),
		GrantID:     GenerateRandomString(32),
		ClientID:    "test-client-id",
		RedirectURI: "https://example.com/callback",
		Scopes:      []string{"calendar.read"},
		Principal:   "test-user-123",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}
