// Package byteorder holds the fixed-width big-endian helpers shared by every
// wire encoder. Offsets are caller supplied; an out-of-range offset panics.
package byteorder

import "encoding/binary"

var be = binary.BigEndian

func PutUint16(b []byte, off int, v uint16) {
	be.PutUint16(b[off:off+2], v)
}

func Uint16(b []byte, off int) uint16 {
	return be.Uint16(b[off : off+2])
}

func PutInt16(b []byte, off int, v int16) {
	PutUint16(b, off, uint16(v))
}

func Int16(b []byte, off int) int16 {
	return int16(Uint16(b, off))
}

func PutUint32(b []byte, off int, v uint32) {
	be.PutUint32(b[off:off+4], v)
}

func Uint32(b []byte, off int) uint32 {
	return be.Uint32(b[off : off+4])
}

func PutInt32(b []byte, off int, v int32) {
	PutUint32(b, off, uint32(v))
}

func Int32(b []byte, off int) int32 {
	return int32(Uint32(b, off))
}

func PutUint64(b []byte, off int, v uint64) {
	be.PutUint64(b[off:off+8], v)
}

func Uint64(b []byte, off int) uint64 {
	return be.Uint64(b[off : off+8])
}

func PutInt64(b []byte, off int, v int64) {
	PutUint64(b, off, uint64(v))
}

func Int64(b []byte, off int) int64 {
	return int64(Uint64(b, off))
}
