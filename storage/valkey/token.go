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
// TokenStore Implementation
// ============================================================

// SaveToken stores a token record keyed by its opaque handle, with a TTL
// matching its expiry. Principal identifiers are encrypted at rest when an
// encryptor is set.
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	if record == nil || record.Handle == "" {
		return fmt.Errorf("invalid token record")
	}

	stored := *record
	if enc := s.getEncryptor(); enc != nil && enc.IsEnabled() {
		var err error
		if stored.Principal, err = enc.Encrypt(stored.Principal); err != nil {
			return fmt.Errorf("failed to encrypt principal: %w", err)
		}
		if stored.AgentID != "" {
			if stored.AgentID, err = enc.Encrypt(stored.AgentID); err != nil {
				return fmt.Errorf("failed to encrypt agent ID: %w", err)
			}
		}
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	key := s.tokenKey(record.Handle)

	// Records without an expiry are stored without a TTL
	if record.ExpiresAt.IsZero() {
		err = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Build()).Error()
	} else {
		ttl := calculateTTL(record.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("token record already expired")
		}
		err = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error()
	}
	if err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}

	s.logger.Debug("Saved token record",
		"handle_prefix", safeTruncate(record.Handle, keyLogLength),
		"token_type", record.Type)
	return nil
}

// GetToken retrieves a token record by handle
func (s *Store) GetToken(ctx context.Context, handle string) (*storage.TokenRecord, error) {
	record, err := getAndUnmarshal[storage.TokenRecord](ctx, s, s.tokenKey(handle), storage.ErrTokenNotFound)
	if err != nil {
		return nil, err
	}

	// TTL should handle this, but double-check for safety
	if security.IsExpired(record.ExpiresAt, time.Now()) {
		return nil, storage.ErrTokenExpired
	}

	if enc := s.getEncryptor(); enc != nil && enc.IsEnabled() {
		if record.Principal, err = enc.Decrypt(record.Principal); err != nil {
			return nil, fmt.Errorf("failed to decrypt principal: %w", err)
		}
		if record.AgentID != "" {
			if record.AgentID, err = enc.Decrypt(record.AgentID); err != nil {
				return nil, fmt.Errorf("failed to decrypt agent ID: %w", err)
			}
		}
	}
	return record, nil
}

// DeleteToken removes a token record. Deleting a missing record is not an error.
func (s *Store) DeleteToken(ctx context.Context, handle string) error {
	key := s.tokenKey(handle)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}

	s.logger.Debug("Deleted token record", "handle_prefix", safeTruncate(handle, keyLogLength))
	return nil
}
