// Package hubauth signs drivers into the field hub with a display name and a
// shared passcode, carries them through registration and approval, and keeps
// the signed-in session honest against the remote driver directory.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. [LoginMachine] drives the login and
// registration screens, and [SessionContext] exposes the signed-in driver to
// the rest of the application.
//
// # Architecture boundaries
//
// hubauth is the public surface. It exposes [Engine], [Builder], [Config],
// the UI-facing state holders and value types ([AuthUser], [ActionResult],
// [MetricsSnapshot]). Flow orchestration and audit dispatch live under
// internal/; the directory, session, cache and entitlement packages are
// usable on their own.
//
// # Offline behavior
//
// Foreground actions surface connection failures as a distinct error the UI
// can retry. Background work (session revalidation, entitlement refresh,
// registration polling) degrades silently: only an authoritative negative
// answer from the directory revokes a session, and a stale company config is
// preferred over none.
//
// # What this package must NOT do
//
//   - Return raw error text to the UI; [UserMessage] is the only source of
//     driver-facing strings.
//   - Log or audit a full passcode hash or a plaintext passcode.
//   - Perform I/O outside of Engine methods and the goroutines owned by
//     [LoginMachine] and [SessionContext].
package hubauth
