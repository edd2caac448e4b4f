// Package internal holds code private to hubauth.
//
// # Sub-packages
//
//   - audit: asynchronous event dispatch (Dispatcher and Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - logger: zerolog setup shared by the engine and the CLI
//
// # What this package must NOT do
//
//   - Export types that appear in the public hubauth API.
//   - Be imported by any package outside the hubauth module.
package internal
