package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentauth/delegate/security"
	"github.com/agentauth/delegate/storage"
)

// ============================================================
// FlowStore Implementation
// ============================================================

// SaveGrant stores a grant attempt with a TTL matching its expiry
func (s *Store) SaveGrant(ctx context.Context, grant *storage.Grant) error {
	if grant == nil || grant.ID == "" {
		return fmt.Errorf("invalid grant")
	}

	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	ttl := calculateTTL(grant.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("grant already expired")
	}

	key := s.grantKey(grant.ID)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save grant: %w", err)
	}

	s.logger.Debug("Saved grant",
		"grant_id", safeTruncate(grant.ID, keyLogLength),
		"state", grant.State)
	return nil
}

// GetGrant retrieves a grant by ID
func (s *Store) GetGrant(ctx context.Context, grantID string) (*storage.Grant, error) {
	grant, err := getAndUnmarshal[storage.Grant](ctx, s, s.grantKey(grantID), storage.ErrGrantNotFound)
	if err != nil {
		return nil, err
	}

	// TTL should handle this, but double-check for safety
	if security.IsExpired(grant.ExpiresAt, time.Now()) {
		return nil, storage.ErrGrantExpired
	}
	return grant, nil
}

// DeleteGrant removes a grant. Deleting a missing grant is not an error.
func (s *Store) DeleteGrant(ctx context.Context, grantID string) error {
	key := s.grantKey(grantID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	s.logger.Debug("Deleted grant", "grant_id", safeTruncate(grantID, keyLogLength))
	return nil
}

// SaveAuthorizationCode saves a single-use authorization code with a TTL
// matching its expiry
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("invalid authorization code")
	}

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	ttl := calculateTTL(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code already expired")
	}

	key := s.codeKey(code.Code)

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.logger.Debug("Saved authorization code",
		"code_prefix", safeTruncate(code.Code, keyLogLength),
		"client_id", code.ClientID)
	return nil
}

// RedeemAuthorizationCode atomically consumes an authorization code.
// GETDEL performs the lookup and deletion in a single server-side
// operation, so only ONE concurrent redemption of the same code can
// succeed; the rest observe ErrCodeNotFound.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	key := s.codeKey(code)

	data, err := s.client.Do(ctx, s.client.B().Getdel().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to redeem authorization code: %w", err)
	}

	var authCode storage.AuthorizationCode
	if err := json.Unmarshal([]byte(data), &authCode); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	// TTL should handle this, but double-check for safety
	if security.IsExpired(authCode.ExpiresAt, time.Now()) {
		return nil, storage.ErrCodeExpired
	}

	s.logger.Debug("Redeemed authorization code",
		"code_prefix", safeTruncate(code, keyLogLength),
		"client_id", authCode.ClientID)
	return &authCode, nil
}
