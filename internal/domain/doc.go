// Package domain contains the core entities and value objects of the
// wateringctl device client.
//
// This package is the innermost layer of the client. It has no dependencies
// on transport, logging or timers and only describes what travels over the
// wire and what the client mirrors.
//
// # Entities
//
//   - [Command]: a file-system request encoded as one delimited frame
//   - [Status]: the enumerated status codes answered by the device
//   - [Entry]: one item of a directory listing
//   - [Event]: a decoded push notification from the event socket
//   - [Valve], [Interval], [Day]: the irrigation state kept in the mirror
package domain
