package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. Callers match with
// errors.Is; the engine maps them onto its own error taxonomy.
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrGrantNotFound       = errors.New("grant not found")
	ErrGrantExpired        = errors.New("grant expired")
	ErrCodeNotFound        = errors.New("authorization code not found")
	ErrCodeExpired         = errors.New("authorization code expired")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token expired")
)

// ClientStore defines the interface for the client registry.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient saves a registered client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret validates a client's secret against its stored hash
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)
}

// FlowStore defines the interface for managing authorization grant attempts
// and the single-use codes they produce.
type FlowStore interface {
	// SaveGrant persists the state of an in-flight grant attempt
	SaveGrant(ctx context.Context, grant *Grant) error

	// GetGrant retrieves a grant by its ID. Expired grants are reported as
	// ErrGrantExpired and removed; later lookups return ErrGrantNotFound.
	GetGrant(ctx context.Context, grantID string) (*Grant, error)

	// DeleteGrant removes a grant
	DeleteGrant(ctx context.Context, grantID string) error

	// SaveAuthorizationCode saves an issued authorization code keyed by its value
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// RedeemAuthorizationCode atomically looks up, expiry-checks, and deletes
	// an authorization code as a single critical section per code key.
	// Returns ErrCodeNotFound if absent or already redeemed, ErrCodeExpired
	// if past expiry (the entry is deleted in that case too).
	// Of N concurrent redemptions of the same code, at most one succeeds.
	RedeemAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// TokenStore defines the interface for opaque token records. Self-contained
// signed tokens never touch this store; it backs the opaque-handle codec
// variant only.
type TokenStore interface {
	// SaveToken saves a token record keyed by its handle
	SaveToken(ctx context.Context, record *TokenRecord) error

	// GetToken retrieves a token record by handle. Expired records are
	// reported as ErrTokenExpired; unknown handles as ErrTokenNotFound.
	GetToken(ctx context.Context, handle string) (*TokenRecord, error)

	// DeleteToken removes a token record
	DeleteToken(ctx context.Context, handle string) error
}

// GrantState is the lifecycle state of a grant attempt. Transitions are
// enforced by the engine; the store only persists them.
type GrantState string

const (
	// GrantStateLoginPending: client validated, principal not yet authenticated
	GrantStateLoginPending GrantState = "login_pending"

	// GrantStateAwaitingConsent: principal authenticated, consent not yet given
	GrantStateAwaitingConsent GrantState = "awaiting_consent"

	// GrantStateCodeIssued: consent approved, single-use code minted
	GrantStateCodeIssued GrantState = "code_issued"

	// GrantStateRedeemed: code exchanged for a token; terminal
	GrantStateRedeemed GrantState = "redeemed"

	// GrantStateDenied: principal denied consent; terminal
	GrantStateDenied GrantState = "denied"
)

// Client represents a registered relying application
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash
	ClientName       string
	RedirectURIs     []string
	Scopes           []string // allowed scopes; empty means all supported scopes
	CreatedAt        time.Time
}

// Grant represents the state of an in-flight authorization grant attempt
type Grant struct {
	ID          string // engine-assigned grant ID (UUID)
	State       GrantState
	ClientID    string
	RedirectURI string
	Scopes      []string
	ClientState string // client's opaque state parameter, echoed back with the code
	Principal   string // bound at authentication
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// AuthorizationCode represents an issued single-use authorization code
// binding {principal, client, scope, redirect target, expiry}.
type AuthorizationCode struct {
	Code        string
	GrantID     string
	ClientID    string
	RedirectURI string
	Scopes      []string
	Principal   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// TokenRecord is the server-side state behind an opaque token handle.
// It mirrors the claim set a self-contained token would carry.
type TokenRecord struct {
	Handle    string
	Type      string // "session", "delegation", "access", or "credential"
	Principal string
	AgentID   string
	Scopes    []string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
