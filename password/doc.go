// Package password implements password hashing with Argon2id and the
// complexity policy applied at registration.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so a
// directory can re-hash on the next successful login.
//
// # Architecture boundaries
//
// [Policy] describes every rule a candidate password breaks; it never hashes.
// [Argon2] hashes whatever it is given and only bounds the input length.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other identityauth package.
//   - Log plaintext passwords.
package password
