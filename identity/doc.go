// Package identity defines the user-directory contract the authentication core
// depends on, together with the leaf types shared by every other package:
// users, profiles, roles and the per-user refresh credential record.
//
// # Architecture boundaries
//
// Directories (in-memory, SQL, anything a caller writes) implement [Directory].
// Refresh-state storage can be split out of the directory by implementing
// [RefreshStateStore] on its own, as the Redis store in package session does.
//
// # What this package must NOT do
//
//   - Import any other identityauth package.
//   - Hash passwords or talk to storage.
package identity
