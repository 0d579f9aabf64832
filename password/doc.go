// Package password hashes and verifies credentials with Argon2id for the
// local identity provider.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// provider can re-hash on the next successful verification, and
// [Hasher.Burn] spends the same work as a real verification for callers that
// have no stored hash to compare against.
//
// Password policy (length, character classes) is enforced by the Engine; this
// package only bounds input size so a huge password cannot pin a CPU.
package password
