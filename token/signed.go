package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentauth/delegate"
)

// signedClaims is the JWT wire form of Claims. Scope travels as a
// space-separated string (RFC 9068 style); the type discriminator is the
// token_use claim so signature coverage includes it.
type signedClaims struct {
	TokenUse string `json:"token_use"`
	AgentID  string `json:"agent_id,omitempty"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// SignedCodec issues and verifies self-contained HMAC-SHA256 JWTs. Tokens
// carry their full claim set and verify offline against the shared key;
// no server-side state is consulted.
type SignedCodec struct {
	key    []byte
	clock  Clock
	leeway time.Duration
}

var _ Codec = (*SignedCodec)(nil)

// NewSignedCodec creates a signed-token codec. The key is the shared
// HMAC-SHA256 signing/verification key and must not be empty.
// If clock is nil, the system clock is used.
func NewSignedCodec(key []byte, clock Clock) (*SignedCodec, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &SignedCodec{key: key, clock: clock}, nil
}

// SetLeeway sets the clock-skew grace period applied to expiry checks
func (c *SignedCodec) SetLeeway(d time.Duration) {
	c.leeway = d
}

// Issue encodes and signs the claim set. HMAC signing is deterministic:
// identical claims and key always produce an identical token string.
func (c *SignedCodec) Issue(ctx context.Context, claims *Claims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("claims are required")
	}
	if claims.Type == "" {
		return "", fmt.Errorf("token type is required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("expiry is required")
	}

	wire := &signedClaims{
		TokenUse: claims.Type,
		AgentID:  claims.AgentID,
		Scope:    JoinScopes(claims.Scopes),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Principal,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse decodes a token string and verifies its signature and expiry
// against the codec's clock. Scope and type checks are left to the caller.
func (c *SignedCodec) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, delegate.ErrMalformedToken("empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithLeeway(c.leeway),
	)

	wire := &signedClaims{}
	parsed, err := parser.ParseWithClaims(tokenString, wire, func(t *jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}
	if !parsed.Valid {
		return nil, delegate.ErrInvalidSignature("token failed validation")
	}

	return claimsFromWire(wire), nil
}

func claimsFromWire(wire *signedClaims) *Claims {
	claims := &Claims{
		Type:      wire.TokenUse,
		Principal: wire.Subject,
		AgentID:   wire.AgentID,
		Scopes:    ParseScopes(wire.Scope),
		Issuer:    wire.Issuer,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims
}

// mapJWTError converts golang-jwt parse failures onto the engine taxonomy.
// Order matters: an expired token with a bad signature must surface the
// signature failure, not the expiry.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return delegate.ErrInvalidSignature("token signature does not match claims")
	case errors.Is(err, jwt.ErrTokenExpired):
		return delegate.ErrTokenExpired("token is past its expiry")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return delegate.ErrMalformedToken("token structure could not be decoded")
	default:
		return delegate.ErrMalformedToken(fmt.Sprintf("token could not be verified: %v", err))
	}
}
