// Package token defines the claim set of delegation-engine tokens and the
// codecs that turn claims into presentable token strings and back.
//
// Three codec variants exist behind one interface: a self-contained signed
// JWT (SignedCodec), a W3C-style verifiable credential over the same
// signing (CredentialCodec), and a server-resolved opaque handle
// (OpaqueCodec). Engines and the Verifier are written against Codec, so the
// variant is a configuration choice rather than duplicated logic.
package token

import "context"

// Codec encodes a claim set into a signed, compact token string and
// decodes/verifies a token string back into a claim set.
//
// Parse guarantees integrity and well-formedness only: it fails with
// delegate.ErrMalformedToken if the structure cannot be decoded,
// delegate.ErrInvalidSignature if the signature (or handle) does not
// authenticate the claims, and delegate.ErrTokenExpired if the clock is past
// the expiry claim. Scope and type checks are the Verifier's responsibility,
// never the codec's.
type Codec interface {
	// Issue encodes and signs the claim set. Signing is deterministic given
	// (claims, key); freshness comes from the issued-at/expiry claims.
	Issue(ctx context.Context, claims *Claims) (string, error)

	// Parse decodes and verifies a token string, returning the full claim set
	Parse(ctx context.Context, tokenString string) (*Claims, error)
}
