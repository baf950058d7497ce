// Package wire defines the catalog RPC protocol: XDR-encoded messages inside
// record-marking frames.
//
// Every message starts with an XID and a message type. CALL messages carry a
// procedure number and its arguments; REPLY messages carry a status and the
// result; EVENT messages are unsolicited server pushes carrying an encoded
// notification and always travel with XID 0.
package wire

// Message types.
const (
	MsgCall  uint32 = 0
	MsgReply uint32 = 1
	MsgEvent uint32 = 2
)

// Procedure numbers. Zero is reserved so an all-zero header never looks like
// a valid call.
const (
	ProcRegister uint32 = 1
	ProcLogin    uint32 = 2
	ProcLogout   uint32 = 3
	ProcList     uint32 = 4
	ProcOpen     uint32 = 5
	ProcUpload   uint32 = 6
	ProcDelete   uint32 = 7
	ProcUpdate   uint32 = 8
)

// Reply status codes. Clients only need success/failure; the detail stays in
// the server log.
const (
	StatusOK    uint32 = 0
	StatusError uint32 = 1
)

// MaxFragmentSize bounds a single record-marking fragment. Catalog messages
// are tiny; anything near this limit is a corrupt or hostile stream.
const MaxFragmentSize = 1 * 1024 * 1024

// lastFragmentBit marks the final fragment in the record-marking header.
const lastFragmentBit = 0x80000000

// ProcedureName returns a human-readable name for logging and metrics.
func ProcedureName(procedure uint32) string {
	switch procedure {
	case ProcRegister:
		return "REGISTER"
	case ProcLogin:
		return "LOGIN"
	case ProcLogout:
		return "LOGOUT"
	case ProcList:
		return "LIST"
	case ProcOpen:
		return "OPEN"
	case ProcUpload:
		return "UPLOAD"
	case ProcDelete:
		return "DELETE"
	case ProcUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}
