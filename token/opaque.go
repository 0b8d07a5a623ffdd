package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/storage"
)

// OpaqueCodec issues random token handles resolved server-side against a
// storage.TokenStore. The handle carries no claims itself; validity is
// whatever the store says at lookup time. Verification is a read-only
// lookup, so it is safe to call concurrently and repeatedly.
type OpaqueCodec struct {
	store  storage.TokenStore
	clock  Clock
	leeway time.Duration
}

var _ Codec = (*OpaqueCodec)(nil)

// NewOpaqueCodec creates an opaque-handle codec backed by the given store
func NewOpaqueCodec(store storage.TokenStore, clock Clock) (*OpaqueCodec, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &OpaqueCodec{store: store, clock: clock}, nil
}

// SetLeeway sets the clock-skew grace period applied to expiry checks
func (c *OpaqueCodec) SetLeeway(d time.Duration) {
	c.leeway = d
}

// Issue mints a random handle and persists the claim set behind it
func (c *OpaqueCodec) Issue(ctx context.Context, claims *Claims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("claims are required")
	}
	if claims.Type == "" {
		return "", fmt.Errorf("token type is required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("expiry is required")
	}

	handle := oauth2.GenerateVerifier()
	record := &storage.TokenRecord{
		Handle:    handle,
		Type:      claims.Type,
		Principal: claims.Principal,
		AgentID:   claims.AgentID,
		Scopes:    append([]string(nil), claims.Scopes...),
		Issuer:    claims.Issuer,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}
	if err := c.store.SaveToken(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save token record: %w", err)
	}
	return handle, nil
}

// Parse resolves a handle against the store. An unrecognized handle fails
// the same way a bad signature does: the presented artifact does not
// authenticate any claims.
func (c *OpaqueCodec) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, delegate.ErrMalformedToken("empty token")
	}

	record, err := c.store.GetToken(ctx, tokenString)
	switch {
	case errors.Is(err, storage.ErrTokenNotFound):
		return nil, delegate.ErrInvalidSignature("unrecognized token handle")
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, delegate.ErrTokenExpired("token is past its expiry")
	case err != nil:
		return nil, delegate.ErrServerError(fmt.Sprintf("token lookup failed: %v", err))
	}

	// The store checks expiry against its own clock; re-check here so a
	// store without lazy expiry still cannot resurrect a stale record.
	if security.IsExpiredWithGracePeriod(record.ExpiresAt, c.clock.Now(), c.leeway) {
		return nil, delegate.ErrTokenExpired("token is past its expiry")
	}

	return &Claims{
		Type:      record.Type,
		Principal: record.Principal,
		AgentID:   record.AgentID,
		Scopes:    append([]string(nil), record.Scopes...),
		Issuer:    record.Issuer,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}
