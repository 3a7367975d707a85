// Package refresh owns the invariant "at most one live refresh credential per
// user": it issues access/refresh pairs and persists the refresh record, and it
// rotates a presented pair into a new one.
//
// # Rotation protocol
//
// The presented access token is validated with expiry ignored, only to learn
// whose credential is being exchanged. Roles are re-resolved from the directory
// so revoked privileges never survive a refresh. The stored record is replaced
// through [identity.RefreshStateStore.SwapRefreshState], a single conditional
// update keyed by user id: of two concurrent rotations presenting the same
// value exactly one wins.
//
// # What this package must NOT do
//
//   - Import identityauth (the root package).
//   - Retry a failed rotation. A failed exchange ends that credential chain.
package refresh
