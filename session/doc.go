// Package session persists the signed-in driver and any in-flight
// registration request in a secure key-value store.
//
// # Storage layout
//
// Every field is its own key (driverId, driverName, passcodeHash, isAdmin,
// isViewer, companyId, companyName, driverVerifiedAt, plus the pending*
// registration mirror). Booleans are the literal strings "true" and "false";
// timestamps are epoch milliseconds.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model and ships [KV]
// backends for memory, a local file and Redis. It does NOT talk to the remote
// directory or decide whether a session is still approved; that belongs to
// the Engine.
//
// # What this package must NOT do
//
//   - Import hubauth or directory (no upward imports).
//   - Merge partial session fields: a session is always written whole.
//   - Store plaintext passcodes.
package session
