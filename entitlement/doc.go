// Package entitlement resolves which apps a company may open.
//
// Every company is on a tier. A tier implies a default app set, and the
// company record may override it with an explicit enabledApps list. Configs
// are cached for an hour; when the directory cannot be reached, the last
// cached config is served no matter how old it is.
//
// A nil *CompanyConfig means "no company": every app is enabled.
//
// # Architecture boundaries
//
// Resolver depends on a document getter (directory.Documents in production)
// and a cache.Store. It does not know about sessions or login.
//
// # What this package must NOT do
//
//   - Import hubauth.
//   - Surface fetch errors to callers; failures degrade to cache or nil.
package entitlement
