// Package directory is the HTTP client for the remote driver directory and the
// company document store.
//
// The driver directory follows realtime-database REST semantics: every path
// is addressed as {base}/{path}.json, a GET on a missing path yields JSON null,
// POST to a collection returns {"name": generatedKey} and PATCH merges fields.
// Company documents use the typed-wrapper encoding of the documents API
// ({"stringValue": "x"}, {"arrayValue": {"values": [...]}}).
//
// # Failure kinds
//
// Every request is bounded by a client-side timeout. Failures are reported as
// one of [ErrTimeout], [ErrNetwork], [ErrServer] or [ErrDecode] so callers can
// treat "no answer" differently from an authoritative negative answer.
//
// # Architecture boundaries
//
// Driver records are normalized here: the legacy nested shape is resolved into
// [DriverDocument] once, at the client boundary, so the engine never inspects
// raw JSON.
//
// # What this package must NOT do
//
//   - Persist anything locally.
//   - Decide session or registration outcomes.
//   - Log the API key or full passcode hashes.
package directory
