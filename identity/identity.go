// Package identity authenticates resource-owner credentials.
//
// The engine only depends on the Authenticator interface, so deployments
// can plug in LDAP, an identity provider, or any credential backend. The
// in-memory Directory implementation is suitable for tests and small
// deployments.
package identity

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/agentauth/delegate"
)

// Authenticator validates principal credentials.
type Authenticator interface {
	// CheckCredentials validates a username/password pair and returns the
	// canonical principal identifier on success. Failures return an
	// invalid_credentials error without revealing whether the username
	// exists.
	CheckCredentials(ctx context.Context, username, password string) (string, error)
}

// Directory is an in-memory Authenticator backed by bcrypt password hashes.
type Directory struct {
	mu    sync.RWMutex
	users map[string]string // username -> bcrypt hash
}

// NewDirectory creates an empty in-memory directory
func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]string),
	}
}

// Register adds or replaces a principal with the given password.
// The password is stored as a bcrypt hash.
func (d *Directory) Register(username, password string) error {
	if username == "" {
		return delegate.ErrInvalidRequest("username is required")
	}
	if password == "" {
		return delegate.ErrInvalidRequest("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return delegate.ErrServerError("failed to hash password")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[username] = string(hash)
	return nil
}

// CheckCredentials implements Authenticator
func (d *Directory) CheckCredentials(ctx context.Context, username, password string) (string, error) {
	d.mu.RLock()
	hash, ok := d.users[username]
	d.mu.RUnlock()

	if !ok {
		// Burn a bcrypt comparison so unknown usernames cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return "", delegate.ErrInvalidCredentials("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", delegate.ErrInvalidCredentials("invalid username or password")
	}

	return username, nil
}
