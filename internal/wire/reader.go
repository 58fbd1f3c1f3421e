package wire

import "encoding/binary"

// Reader reads big-endian fields from a packet payload. Byte 0 is always
// the opcode.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode
}

// Opcode returns the payload's leading opcode byte, or 0 for an empty payload.
func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadU8 reads one unsigned byte.
func (r *Reader) ReadU8() uint8 {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadI16 reads a signed 16-bit big-endian integer (coordinates).
func (r *Reader) ReadI16() int16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := int16(binary.BigEndian.Uint16(r.data[r.off:]))
	r.off += 2
	return v
}

// ReadU32 reads an unsigned 32-bit big-endian integer (entity ids).
func (r *Reader) ReadU32() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadU64 reads an unsigned 64-bit big-endian integer (player ids).
func (r *Reader) ReadU64() uint64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadBytes reads n raw bytes, truncating at the end of the payload.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// ReadString reads a length-prefixed (1-byte length) UTF-8 string, used for
// chat text and display names — this wire's strings are never Big5/MS950,
// since the client speaks UTF-8 directly (see SPEC_FULL.md domain stack).
func (r *Reader) ReadString() string {
	n := int(r.ReadU8())
	return string(r.ReadBytes(n))
}

// Remaining returns the number of unread payload bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
