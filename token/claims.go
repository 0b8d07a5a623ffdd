package token

import (
	"sort"
	"strings"
	"time"
)

// Token type discriminators. A token's type must match the verification
// context expected by the relying party; the Verifier enforces this, the
// codecs only carry it.
const (
	TypeSession    = "session"
	TypeDelegation = "delegation"
	TypeAccess     = "access"
	TypeCredential = "credential"
)

// Claims is the codec-agnostic claim set of a token. All codec variants
// encode and decode this shape, whatever their physical encoding.
type Claims struct {
	// Type is the token type discriminator
	Type string

	// Principal is the stable identifier of the human user the token
	// ultimately acts for
	Principal string

	// AgentID identifies the delegate acting on the principal's behalf.
	// Empty for session and access tokens.
	AgentID string

	// Scopes is the set of capability tags the token grants
	Scopes []string

	// Issuer identifies the minting authority
	Issuer string

	// IssuedAt and ExpiresAt bound the token's lifetime
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasScope reports whether the claim set carries the given scope tag.
// Matching is exact membership, never prefix or substring.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every given scope tag is present
func (c *Claims) HasAllScopes(scopes []string) bool {
	for _, s := range scopes {
		if !c.HasScope(s) {
			return false
		}
	}
	return true
}

// ScopeString renders the scope set in its space-separated wire form
func (c *Claims) ScopeString() string {
	return JoinScopes(c.Scopes)
}

// ParseScopes splits a space-separated scope string into a normalized set:
// sorted, deduplicated, empty fields dropped.
func ParseScopes(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// JoinScopes renders a scope set as a space-separated string
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// SubsetOf reports whether every scope in sub is present in super.
// Used to enforce monotonic scope narrowing across delegation hops.
func SubsetOf(sub, super []string) bool {
	have := make(map[string]bool, len(super))
	for _, s := range super {
		have[s] = true
	}
	for _, s := range sub {
		if !have[s] {
			return false
		}
	}
	return true
}
