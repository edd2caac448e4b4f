// Package cache is the non-secret local key-value store used for company
// configuration, required-app lists and the driver profile mirror.
//
// Entries never expire inside the store. Callers embed their own fetch
// timestamp in the value and decide freshness themselves, which lets a stale
// entry still serve as an offline fallback.
//
// # Architecture boundaries
//
// This package owns storage only. It does not know about companies, tiers or
// profiles, and it never performs network I/O besides talking to its backend.
//
// # What this package must NOT do
//
//   - Import hubauth or any sibling domain package.
//   - Store secrets; passcode hashes belong in the session package.
package cache
