// Package audit delivers login-protocol audit events to a sink without blocking the request
// path.
//
// # Components
//
//   - [Sink]: event consumer ([ZapSink], [ChannelSink], [NoOpSink]).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full delivery.
//   - [Event]: one audit record.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide which events to emit; the
// Engine does.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import authcore or any sibling internal package.
//   - Record secrets, codes, or tokens in event metadata.
package audit
