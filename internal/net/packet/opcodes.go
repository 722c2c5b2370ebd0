package packet

// Client opcodes.
const (
	C_OPCODE_HELLO        byte = 1
	C_OPCODE_LOAD_OBJECT  byte = 2
	C_OPCODE_SPAWN_OBJECT byte = 3
	C_OPCODE_PING         byte = 4
)

// Server opcodes.
const (
	S_OPCODE_WELCOME      byte = 101
	S_OPCODE_SPAWN_RESULT byte = 102
	S_OPCODE_PONG         byte = 103
	S_OPCODE_ERROR        byte = 104
)

// ProtocolVersion is sent in S_WELCOME.
const ProtocolVersion = 1
