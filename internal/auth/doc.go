// Package auth validates externally-issued JWTs and gates HTTP requests.
//
// # Token Validation
//
// Tokens are minted by the upstream identity provider, never by this
// gateway. The unverified token header selects the validation policy:
//
//   - HS256 (or no alg): full signature verification against the
//     configured shared secret, plus exp/iat validation.
//   - RS256/384/512, ES256/384/512: signature verification is skipped —
//     the provider verified these when it federated the OAuth login —
//     but exp/iat are still enforced.
//   - Anything else: rejected.
//
// All failure modes collapse into ErrInvalidToken so clients cannot
// probe which check failed.
//
// # Request Gate
//
// RequestGate checks every inbound request. Paths on the public
// allow-list pass through (with best-effort identity attachment); all
// others require a bearer token that validates and resolves to an
// existing local user. The resolved Identity travels on the request
// context via WithIdentity/FromContext.
package auth
