// Package ports defines the interfaces (ports) that connect the protocol
// core to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Dialer] / [Conn]: message-based socket used by the transport channel
//   - [StateFetcher]: full refetch of the irrigation state for the mirror
//   - [Notifier]: transient user-facing notifications
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The protocol packages (internal/transport, internal/fsclient, ...) depend
// only on these interfaces. Infrastructure adapters (internal/adapters)
// implement them with gorilla/websocket, net/http and zerolog.
package ports
