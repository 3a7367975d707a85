// Package permission holds role-based access policies: a Policy names the
// roles allowed to perform an action and a Registry freezes the set of named
// policies an application enforces.
//
// Role names compare case-sensitively and a caller holding any one of a
// policy's roles is allowed.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import identityauth, jwt, or session.
//   - Change a Registry after Freeze.
package permission
