// Package server runs the marquee protocol endpoint.
//
// Ownership boundary:
//   - listener accept loop and per-connection read/dispatch/reply loop
//   - session table with lifecycle events persisted to the store
//   - liveness hooks (connection repair, log writer restart, session table
//     checks) and orderly shutdown for package supervise
//
// A message whose payload fails to decode is answered with an Error reply and
// the connection is kept; framing errors end the connection.
package server
