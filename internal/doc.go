// Package internal contains helpers that are private to identityauth,
// starting with secure generation of opaque refresh values.
//
// # Sub-packages
//
//   - appconfig: file configuration for the identityauth binary
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for Login, Refresh and Register
//   - httpapi: the JSON HTTP surface served by cmd/identityauth
//   - logging: slog handler construction for the binary
//   - rate: Redis-backed login throttling
//
// # What this package must NOT do
//
//   - Export types that appear in the public identityauth API.
//   - Be imported by any package outside the identityauth module.
package internal
