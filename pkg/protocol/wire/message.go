package wire

// Messages are marshaled field by field in declaration order, so struct
// layout here IS the wire format. Change nothing lightly.

// CallHeader opens every CALL message.
type CallHeader struct {
	XID       uint32
	Type      uint32
	Procedure uint32
}

// ReplyHeader opens every REPLY message.
type ReplyHeader struct {
	XID    uint32
	Type   uint32
	Status uint32
}

// EventHeader opens every EVENT message. XID is always 0: events answer no
// call.
type EventHeader struct {
	XID  uint32
	Type uint32
}

// Prefix is the part shared by all three message kinds, used by readers to
// decide how to decode the rest.
type Prefix struct {
	XID  uint32
	Type uint32
}

// RecordInfo is the wire form of a catalog record. Permission travels as the
// string "RO" or "RW" and is validated at the boundary.
type RecordInfo struct {
	Filename   string
	Size       int64
	Owner      string
	Permission string
}

type RegisterArgs struct {
	Username string
	Password string
}

type RegisterResult struct {
	OK bool
}

type LoginArgs struct {
	Username string
	Password string
}

// LoginResult carries the session token; 0 means the login failed.
type LoginResult struct {
	Token uint64
}

type LogoutArgs struct {
	Token uint64
}

type ListResult struct {
	Records []RecordInfo
}

type OpenArgs struct {
	Filename string
	Token    uint64
}

// OpenResult distinguishes absent from zero-valued: Record is meaningful
// only when Found is true.
type OpenResult struct {
	Found  bool
	Record RecordInfo
}

type UploadArgs struct {
	Token      uint64
	Filename   string
	Size       int64
	Permission string
}

type DeleteArgs struct {
	Filename string
	Token    uint64
}

type UpdateArgs struct {
	Filename string
	Size     int64
	Token    uint64
}

// EventPayload carries the encoded notification ("KIND##actor").
type EventPayload struct {
	Payload string
}
