// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunSubmitRegistration, RunRevalidate, ...)
// takes a typed dependency struct of closures and sentinel errors, so the
// same code runs against the live directory and against test fakes. The
// Engine builds these structs once and delegates to them.
//
// # Architecture boundaries
//
// Flows coordinate the directory lookups, the session store, metrics and
// audit emission. They do not own any of these resources; the Engine does.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import hubauth (to avoid import cycles).
//   - Talk to the network or disk except through the dependency closures.
package flows
