// Package passcode derives directory lookup keys from driver passcodes and
// enforces the passcode format policy used at registration.
//
// # Output format
//
// A passcode hash is the SHA-256 digest of the passcode's UTF-8 bytes,
// encoded as 64 lowercase hex characters. No salt is applied: the digest is
// the key of the driver's approved record in the remote directory, so the
// transform must stay stable for existing records to remain reachable.
//
// # Architecture boundaries
//
// This package owns hashing and format validation only. Availability checks
// and registration state belong to the Engine.
//
// # What this package must NOT do
//
//   - Store or transmit passcodes.
//   - Import any other hubauth package.
//   - Log plaintext passcodes or full hashes.
package passcode
