package wire

// Opcode identifies a packet's payload shape. Grouped by namespace per
// spec.md section 4.10: connection, movement, local-player, remote-player,
// batch, entity, combat, chat, inventory, system. Only the namespaces this
// server uses (connection, movement, local-player, remote-player, batch,
// chat, system) have concrete members; the rest of the byte space is reserved for the
// out-of-scope gameplay systems spec.md excludes as Non-goals.
type Opcode uint8

// Client -> Server
const (
	OpHandshakeRequest  Opcode = 0x00 // [version:u16][clientMagic:u32]
	OpMoveRequest       Opcode = 0x01 // [direction:u8][facing:u8]
	OpTurnRequest       Opcode = 0x02 // [direction:u8]
	OpChatRequest       Opcode = 0x03 // [channel:u8][text: len-prefixed]
	OpPingRequest       Opcode = 0xF6 // (empty)
	OpDisconnectRequest Opcode = 0xFE // (empty)
)

// Server -> Client
const (
	OpWelcome             Opcode = 0x10 // [player_id:u64][x:i16][y:i16][facing:u8]
	OpPositionCorrection  Opcode = 0x11 // [x:i16][y:i16][facing:u8]
	OpFacingCorrection    Opcode = 0x12 // [facing:u8]
	OpPlayerSpatialBatch  Opcode = 0x25 // [count:u8][id:u64,x:i16,y:i16,facing:u8]*count
	OpLeftGame            Opcode = 0x26 // [player_id:u64]
	OpChatBroadcast       Opcode = 0x27 // [channel:u8][speaker_id:u64][text: len-prefixed]
	OpHandshakeAccepted   Opcode = 0xF0 // [serverVersion:u16][serverMagic:u32]
	OpHandshakeRejected   Opcode = 0xF1 // [code:u8][len:u8][reason:bytes]
	OpServerShutdown      Opcode = 0xF2 // [reason:u8]
	OpPong                Opcode = 0xF7 // (empty)
	OpHeartbeat           Opcode = 0xFB // (empty)
	OpDisconnectAck       Opcode = 0xFF // (empty)
)

// PayloadSpec describes an opcode's expected payload shape so a dispatcher
// can reject malformed frames before the handler body runs.
type PayloadSpec struct {
	Name        string
	FixedLen    int  // exact payload length including the opcode byte, or -1
	IsVariable  bool // true when FixedLen is a lower bound, not exact
}

// OpcodeTable maps every opcode this server recognizes to its payload spec.
var OpcodeTable = map[Opcode]PayloadSpec{
	OpHandshakeRequest:  {Name: "C_Handshake_Request", FixedLen: 7},
	OpMoveRequest:       {Name: "C_Move_Request", FixedLen: 3},
	OpTurnRequest:       {Name: "C_Turn_Request", FixedLen: 2},
	OpChatRequest:       {Name: "C_Chat_Request", FixedLen: 3, IsVariable: true},
	OpPingRequest:       {Name: "C_Ping_Request", FixedLen: 1},
	OpDisconnectRequest: {Name: "C_Disconnect_Request", FixedLen: 1},

	OpWelcome:            {Name: "S_Welcome", FixedLen: 14},
	OpPositionCorrection: {Name: "S_Position_Correction", FixedLen: 6},
	OpFacingCorrection:   {Name: "S_Facing_Correction", FixedLen: 2},
	OpPlayerSpatialBatch: {Name: "S_Player_Spatial", FixedLen: 2, IsVariable: true},
	OpLeftGame:           {Name: "S_Left_Game", FixedLen: 9},
	OpChatBroadcast:      {Name: "S_Chat_Broadcast", FixedLen: 11, IsVariable: true},
	OpHandshakeAccepted:  {Name: "S_HandshakeAccepted", FixedLen: 7},
	OpHandshakeRejected:  {Name: "S_Handshake_Rejected", FixedLen: 3, IsVariable: true},
	OpServerShutdown:     {Name: "S_Server_Shutdown", FixedLen: 2},
	OpPong:               {Name: "S_Pong", FixedLen: 1},
	OpHeartbeat:          {Name: "S_Heartbeat", FixedLen: 1},
	OpDisconnectAck:      {Name: "S_Disconnect_Acknowledged", FixedLen: 1},
}
