// Package identityauth issues, validates and rotates authentication
// credentials: a short-lived HS256 access token carrying the user's claims,
// and a long-lived opaque refresh value that can be exchanged exactly once for
// a new pair.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// identityauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Orchestration lives in internal/flows; claims, jwt, refresh,
// identity and password are leaf packages the Engine composes. User storage is
// a collaborator behind [identity.Directory]; directory/memory and
// directory/sqlstore are the shipped implementations.
//
// # What this package must NOT do
//
//   - Tell callers why a login or refresh failed beyond the sentinel errors.
//   - Persist access tokens.
//   - Import any sub-package that re-imports identityauth (no import cycles).
//
// # Rotation contract
//
// Exactly one refresh value per user is live. Refresh swaps it with a single
// compare-and-swap in the refresh state store, so of two concurrent exchanges
// presenting the same value exactly one succeeds.
package identityauth
