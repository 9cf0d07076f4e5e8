// Package password hashes customer passwords with Argon2id and checks new
// passwords against the account policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash on the next successful sign-in.
//
// # Policy
//
// [DefaultPolicy] combines a minimum length, similarity to user attributes,
// a common password list and an all-digits check. Violations carry stable
// codes; rendering them is left to the caller.
//
// This package never stores passwords and never logs plaintext.
package password
