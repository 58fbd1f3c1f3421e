// Package wire implements the client/server binary protocol: frame
// delineation, typed field reading/writing, and the opcode table.
//
// Every multi-byte field on this wire is big-endian, unlike the teacher's
// little-endian L1J protocol — this spec's framing and field layout are
// defined directly in spec.md section 6, not inherited from the teacher.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magic0 = 0x11
	magic1 = 0x68

	// MaxPayloadSize is the largest payload a frame may carry; size must
	// satisfy 0 < size < MaxPayloadSize.
	MaxPayloadSize = 4096

	headerLen = 4
)

// ReadFrame reads one frame from r: [0x11][0x68][size:u16 BE][payload].
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}
	if header[0] != magic0 || header[1] != magic1 {
		return nil, fmt.Errorf("wire: bad magic %02x%02x", header[0], header[1])
	}
	size := binary.BigEndian.Uint16(header[2:4])
	if size == 0 || size >= MaxPayloadSize {
		return nil, fmt.Errorf("wire: invalid frame size %d", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload (%d bytes): %w", size, err)
	}
	return payload, nil
}

// FrameSize returns the number of bytes WriteFrame puts on the wire for
// payload, header included — what bandwidth accounting should count.
func FrameSize(payload []byte) int {
	return headerLen + len(payload)
}

// WriteFrame writes payload as one frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) >= MaxPayloadSize {
		return fmt.Errorf("wire: invalid payload size %d", len(payload))
	}
	var header [headerLen]byte
	header[0] = magic0
	header[1] = magic1
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}
