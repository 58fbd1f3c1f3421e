package wire

// This file holds typed encode/decode helpers for the packets this core
// actually emits and consumes. Each Encode* returns a ready-to-frame
// payload; each Decode* assumes the reader was constructed from a payload
// already validated against OpcodeTable's length spec.

// --- client -> server ---

type MoveRequest struct {
	Direction uint8
	Facing    uint8
}

func DecodeMoveRequest(r *Reader) MoveRequest {
	return MoveRequest{Direction: r.ReadU8(), Facing: r.ReadU8()}
}

type TurnRequest struct {
	Direction uint8
}

func DecodeTurnRequest(r *Reader) TurnRequest {
	return TurnRequest{Direction: r.ReadU8()}
}

type ChatRequest struct {
	Channel uint8
	Text    string
}

func DecodeChatRequest(r *Reader) ChatRequest {
	return ChatRequest{Channel: r.ReadU8(), Text: r.ReadString()}
}

type HandshakeRequest struct {
	Version     uint16
	ClientMagic uint32
}

func DecodeHandshakeRequest(r *Reader) HandshakeRequest {
	return HandshakeRequest{
		Version:     uint16(r.ReadI16()),
		ClientMagic: r.ReadU32(),
	}
}

// --- server -> client ---

func EncodeHandshakeAccepted(serverVersion uint16, serverMagic uint32) []byte {
	w := NewWriter(uint8(OpHandshakeAccepted))
	w.WriteI16(int16(serverVersion))
	w.WriteU32(serverMagic)
	return w.Bytes()
}

func EncodeHandshakeRejected(code uint8, reason string) []byte {
	w := NewWriter(uint8(OpHandshakeRejected))
	w.WriteU8(code)
	w.WriteString(reason)
	return w.Bytes()
}

func EncodeWelcome(playerID uint64, x, y int16, facing uint8) []byte {
	w := NewWriter(uint8(OpWelcome))
	w.WriteU64(playerID)
	w.WriteI16(x)
	w.WriteI16(y)
	w.WriteU8(facing)
	return w.Bytes()
}

func EncodePositionCorrection(x, y int16, facing uint8) []byte {
	w := NewWriter(uint8(OpPositionCorrection))
	w.WriteI16(x)
	w.WriteI16(y)
	w.WriteU8(facing)
	return w.Bytes()
}

func EncodeFacingCorrection(facing uint8) []byte {
	w := NewWriter(uint8(OpFacingCorrection))
	w.WriteU8(facing)
	return w.Bytes()
}

// SpatialEntry is one player's position within a batched spatial update.
type SpatialEntry struct {
	PlayerID uint64
	X, Y     int16
	Facing   uint8
}

func EncodePlayerSpatialBatch(entries []SpatialEntry) []byte {
	w := NewWriter(uint8(OpPlayerSpatialBatch))
	w.WriteU8(uint8(len(entries)))
	for _, e := range entries {
		w.WriteU64(e.PlayerID)
		w.WriteI16(e.X)
		w.WriteI16(e.Y)
		w.WriteU8(e.Facing)
	}
	return w.Bytes()
}

func DecodePlayerSpatialBatch(r *Reader) []SpatialEntry {
	count := int(r.ReadU8())
	out := make([]SpatialEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, SpatialEntry{
			PlayerID: r.ReadU64(),
			X:        r.ReadI16(),
			Y:        r.ReadI16(),
			Facing:   r.ReadU8(),
		})
	}
	return out
}

func EncodeLeftGame(playerID uint64) []byte {
	w := NewWriter(uint8(OpLeftGame))
	w.WriteU64(playerID)
	return w.Bytes()
}

func EncodeChatBroadcast(channel uint8, speakerID uint64, text string) []byte {
	w := NewWriter(uint8(OpChatBroadcast))
	w.WriteU8(channel)
	w.WriteU64(speakerID)
	w.WriteString(text)
	return w.Bytes()
}

func EncodeServerShutdown(reason uint8) []byte {
	w := NewWriter(uint8(OpServerShutdown))
	w.WriteU8(reason)
	return w.Bytes()
}

func EncodePong() []byte {
	return NewWriter(uint8(OpPong)).Bytes()
}

func EncodeHeartbeat() []byte {
	return NewWriter(uint8(OpHeartbeat)).Bytes()
}

func EncodeDisconnectAck() []byte {
	return NewWriter(uint8(OpDisconnectAck)).Bytes()
}
