// Package protocol owns the message contract spoken by marquee clients.
//
// Ownership boundary:
// - message envelope (id, type, flags, tagged-value arguments)
// - frame <-> message conversion
// - argument schema validation entry points
//
// A message is one frame whose payload is a concatenation of tagged values
// (see package value). Payload decode failures are message scoped: the frame
// has been consumed in full, so the connection stays in sync.
package protocol
