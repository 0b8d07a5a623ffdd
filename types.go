// Package delegate defines the wire contracts and error taxonomy of a
// delegated authorization engine: a principal grants a bounded, scope-limited
// capability to an agent through an authorization-code flow, and the agent
// presents the resulting token to resource servers without ever holding the
// principal's credentials.
//
// The engine itself lives in the engine package; this package carries the
// types that cross its boundary so that transport layers (HTTP, MCP, CLI)
// can be built on top without importing engine internals.
package delegate

// Protocol constants. The grant endpoint accepts only the authorization code
// response type, and the exchange endpoint accepts only the authorization
// code grant type (RFC 6749).
const (
	ResponseTypeCode           = "code"
	GrantTypeAuthorizationCode = "authorization_code"
	TokenTypeBearer            = "Bearer"
)

// AuthorizeRequest is the grant endpoint contract: a client asks to start an
// authorization-code flow for the given scope.
type AuthorizeRequest struct {
	// ClientID identifies the registered client
	ClientID string `json:"client_id"`

	// RedirectURI is the target the client expects the code to be delivered to.
	// Must be in the client's registered set.
	RedirectURI string `json:"redirect_uri"`

	// Scope is the space-separated capability tags being requested
	Scope string `json:"scope"`

	// ResponseType must equal ResponseTypeCode
	ResponseType string `json:"response_type"`

	// State is an opaque client value echoed back with the code
	State string `json:"state,omitempty"`
}

// TokenRequest is the exchange endpoint contract: a client redeems an
// authorization code for an access token.
type TokenRequest struct {
	// ClientID identifies the registered client
	ClientID string `json:"client_id"`

	// ClientSecret authenticates the client
	ClientSecret string `json:"client_secret"`

	// GrantType must equal GrantTypeAuthorizationCode
	GrantType string `json:"grant_type"`

	// Code is the single-use authorization code being redeemed
	Code string `json:"code"`

	// RedirectURI must match the redirect target the code was bound to
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// TokenResponse is returned on successful code redemption
type TokenResponse struct {
	// AccessToken is the minted scoped token
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// Scope is the space-separated scope the token carries
	Scope string `json:"scope,omitempty"`

	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// ErrorResponse is the wire form of an AuthError
type ErrorResponse struct {
	// Error is the stable failure kind
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewErrorResponse converts an AuthError into its wire form
func NewErrorResponse(err *AuthError) *ErrorResponse {
	return &ErrorResponse{
		Error:            err.Code,
		ErrorDescription: err.Description,
	}
}
