// Package audit records driver auth actions: logins, registrations,
// revocations and logouts.
//
// # Components
//
//   - [Event] is one audited action, identified by a random EventID.
//   - [Sink] consumes events: channel, JSON lines, zerolog, or no-op.
//   - [Dispatcher] relays events asynchronously with drop-if-full or
//     block-if-full semantics.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The Engine decides which events
// to emit and what they contain.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import hubauth or any sibling internal package.
//   - Accept full passcode hashes or plaintext passcodes in events.
package audit
