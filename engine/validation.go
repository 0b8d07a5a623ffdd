package engine

import (
	"context"

	"github.com/agentauth/delegate"
	"github.com/agentauth/delegate/storage"
	"github.com/agentauth/delegate/token"
)

// validateAuthorizeRequest checks an authorization request against the
// client registration and the engine scope allowlist. Returns the client
// and the parsed scope set on success.
func (e *Engine) validateAuthorizeRequest(ctx context.Context, req *delegate.AuthorizeRequest) (*storage.Client, []string, error) {
	if req == nil {
		return nil, nil, delegate.ErrInvalidRequest("request is required")
	}
	if req.ClientID == "" {
		return nil, nil, delegate.ErrInvalidRequest("client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, nil, delegate.ErrInvalidRequest("redirect_uri is required")
	}
	if req.ResponseType != delegate.ResponseTypeCode {
		return nil, nil, delegate.ErrUnsupportedResponseType("only the \"code\" response type is supported")
	}

	client, err := e.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, nil, delegate.ErrInvalidClient("unknown client")
	}

	if !redirectURIRegistered(client, req.RedirectURI) {
		return nil, nil, delegate.ErrInvalidRedirectURI("redirect_uri is not registered for this client")
	}

	scopes := token.ParseScopes(req.Scope)
	if len(scopes) == 0 {
		return nil, nil, delegate.ErrInvalidScope("at least one scope is required")
	}
	if err := e.checkScopesAllowed(client, scopes); err != nil {
		return nil, nil, err
	}

	return client, scopes, nil
}

// redirectURIRegistered checks the redirect URI against the client's
// registered set. Comparison is exact; no prefix or pattern matching.
func redirectURIRegistered(client *storage.Client, redirectURI string) bool {
	for _, registered := range client.RedirectURIs {
		if registered == redirectURI {
			return true
		}
	}
	return false
}

// checkScopesAllowed verifies every requested scope against the engine
// allowlist and the client's registered scopes. An empty allowlist admits
// any scope; an empty client scope set likewise.
func (e *Engine) checkScopesAllowed(client *storage.Client, scopes []string) error {
	if len(e.config.SupportedScopes) > 0 {
		if !token.SubsetOf(scopes, e.config.SupportedScopes) {
			return delegate.ErrInvalidScope("requested scope is not supported")
		}
	}
	if len(client.Scopes) > 0 {
		if !token.SubsetOf(scopes, client.Scopes) {
			return delegate.ErrInvalidScope("requested scope exceeds the client registration")
		}
	}
	return nil
}
