package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentauth/delegate"
)

// Verifiable credential schema constants (W3C VC Data Model)
const (
	CredentialContextV1 = "https://www.w3.org/2018/credentials/v1"

	CredentialTypeVerifiable = "VerifiableCredential"
	CredentialTypeDelegation = "DelegationCredential"
)

// CredentialSubject identifies the holder and the permissions granted to it
type CredentialSubject struct {
	// ID is the holder's identifier (typically a DID)
	ID string `json:"id"`

	// Permissions lists the capability tags the credential grants
	Permissions []string `json:"permissions"`
}

// credentialClaims is the JWT wire form of a verifiable credential. It is
// structurally a token with a richer claim schema; signature and expiry
// verification are identical to SignedCodec.
type credentialClaims struct {
	Context []string          `json:"@context"`
	Types   []string          `json:"type"`
	Subject CredentialSubject `json:"credentialSubject"`
	jwt.RegisteredClaims
}

func (c *credentialClaims) hasType(want string) bool {
	for _, t := range c.Types {
		if t == want {
			return true
		}
	}
	return false
}

// CredentialCodec issues and verifies self-contained delegation credentials.
// The holder appears as credentialSubject.id and the scope set as
// credentialSubject.permissions; parsed credentials surface as Claims of
// type TypeCredential so the Verifier needs no special casing.
type CredentialCodec struct {
	key    []byte
	issuer string
	clock  Clock
	leeway time.Duration
}

var _ Codec = (*CredentialCodec)(nil)

// NewCredentialCodec creates a credential codec. issuer is the DID or URL
// recorded as the credential issuer; key is the shared HMAC-SHA256 key.
func NewCredentialCodec(key []byte, issuer string, clock Clock) (*CredentialCodec, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &CredentialCodec{key: key, issuer: issuer, clock: clock}, nil
}

// SetLeeway sets the clock-skew grace period applied to expiry checks
func (c *CredentialCodec) SetLeeway(d time.Duration) {
	c.leeway = d
}

// Issue encodes a claim set as a signed delegation credential. The holder
// is the agent if one is named, otherwise the principal.
func (c *CredentialCodec) Issue(ctx context.Context, claims *Claims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("claims are required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("expiry is required")
	}

	holder := claims.AgentID
	if holder == "" {
		holder = claims.Principal
	}
	if holder == "" {
		return "", fmt.Errorf("credential holder is required")
	}

	wire := &credentialClaims{
		Context: []string{CredentialContextV1},
		Types:   []string{CredentialTypeVerifiable, CredentialTypeDelegation},
		Subject: CredentialSubject{
			ID:          holder,
			Permissions: claims.Scopes,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.Principal,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Parse decodes a credential and verifies its signature, expiry, and
// schema. The permission list surfaces as the scope set of the returned
// claims; membership checks stay with the Verifier.
func (c *CredentialCodec) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, delegate.ErrMalformedToken("empty credential")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithLeeway(c.leeway),
	)

	wire := &credentialClaims{}
	if _, err := parser.ParseWithClaims(tokenString, wire, func(t *jwt.Token) (any, error) {
		return c.key, nil
	}); err != nil {
		return nil, mapJWTError(err)
	}

	if !wire.hasType(CredentialTypeVerifiable) {
		return nil, delegate.ErrMalformedToken("credential lacks the VerifiableCredential type")
	}
	if wire.Subject.ID == "" {
		return nil, delegate.ErrMalformedToken("credential subject id is missing")
	}

	claims := &Claims{
		Type:      TypeCredential,
		Principal: wire.RegisteredClaims.Subject,
		AgentID:   wire.Subject.ID,
		Scopes:    append([]string(nil), wire.Subject.Permissions...),
		Issuer:    wire.Issuer,
	}
	if claims.Principal == "" {
		claims.Principal = wire.Subject.ID
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}
