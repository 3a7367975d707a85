// Package session provides the Redis-backed per-user refresh credential store.
//
// # Storage layout
//
// One Redis hash per user under "<prefix>:<userID>" with fields "h" (hex
// SHA-256 of the refresh value) and "exp" (expiry in Unix milliseconds).
// Plaintext refresh values never reach Redis.
//
// # Architecture boundaries
//
// [Store] implements identity.RefreshStateStore. Rotation runs as one Lua
// script so the check and the overwrite are a single atomic step.
//
// # What this package must NOT do
//
//   - Import identityauth, jwt or refresh (no upward imports).
//   - Decide whether a failed swap is reported to the caller as anything but
//     the identity sentinel errors.
package session
