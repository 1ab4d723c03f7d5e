// Package value owns the tagged value model shared by every protocol message.
//
// Wire shape of one value:
//
//	[2-byte big-endian kind tag][payload, layout fixed by the kind]
//
// The kind enumeration is closed and agreed by both ends of a connection. A
// tag unknown to the decoder is always a hard error; nothing is skipped.
package value
