package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// WriteFrame writes data as a single record-marking fragment: a 4-byte
// big-endian header with the last-fragment bit set and the length in the low
// 31 bits, followed by the payload.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFragmentSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum %d", len(data), MaxFragmentSize)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one complete message, reassembling it from record-marking
// fragments if the peer split it.
func ReadFrame(r io.Reader) ([]byte, error) {
	var message []byte

	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			// EOF before the first fragment byte is a clean close; let the
			// caller tell it apart from a truncated message.
			return nil, err
		}

		raw := binary.BigEndian.Uint32(header[:])
		last := raw&lastFragmentBit != 0
		length := raw &^ uint32(lastFragmentBit)

		if length > MaxFragmentSize {
			return nil, fmt.Errorf("fragment of %d bytes exceeds maximum %d", length, MaxFragmentSize)
		}
		if len(message)+int(length) > MaxFragmentSize {
			return nil, fmt.Errorf("message exceeds maximum %d bytes", MaxFragmentSize)
		}

		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("read fragment body: %w", err)
		}
		message = append(message, fragment...)

		if last {
			return message, nil
		}
	}
}

// EncodeCall marshals a CALL message: header followed by the procedure's
// argument struct.
func EncodeCall(xid, procedure uint32, args interface{}) ([]byte, error) {
	var buf bytes.Buffer

	header := CallHeader{XID: xid, Type: MsgCall, Procedure: procedure}
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal call header: %w", err)
	}
	if args != nil {
		if _, err := xdr.Marshal(&buf, args); err != nil {
			return nil, fmt.Errorf("marshal %s args: %w", ProcedureName(procedure), err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeCall unmarshals a CALL header and returns a reader positioned at the
// argument struct.
func DecodeCall(data []byte) (CallHeader, *bytes.Reader, error) {
	reader := bytes.NewReader(data)

	var header CallHeader
	if _, err := xdr.Unmarshal(reader, &header); err != nil {
		return CallHeader{}, nil, fmt.Errorf("unmarshal call header: %w", err)
	}
	if header.Type != MsgCall {
		return CallHeader{}, nil, fmt.Errorf("expected CALL (%d), got message type %d", MsgCall, header.Type)
	}
	return header, reader, nil
}

// DecodeArgs unmarshals a procedure's argument struct from the reader
// returned by DecodeCall.
func DecodeArgs(reader *bytes.Reader, args interface{}) error {
	if _, err := xdr.Unmarshal(reader, args); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	return nil
}

// EncodeReply marshals a REPLY message: header followed by the optional
// result struct. Pass a nil result for procedures that return nothing.
func EncodeReply(xid, status uint32, result interface{}) ([]byte, error) {
	var buf bytes.Buffer

	header := ReplyHeader{XID: xid, Type: MsgReply, Status: status}
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal reply header: %w", err)
	}
	if result != nil {
		if _, err := xdr.Marshal(&buf, result); err != nil {
			return nil, fmt.Errorf("marshal reply result: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeEvent marshals an EVENT message carrying the encoded notification.
func EncodeEvent(payload string) ([]byte, error) {
	var buf bytes.Buffer

	header := EventHeader{XID: 0, Type: MsgEvent}
	if _, err := xdr.Marshal(&buf, &header); err != nil {
		return nil, fmt.Errorf("marshal event header: %w", err)
	}
	if _, err := xdr.Marshal(&buf, &EventPayload{Payload: payload}); err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePrefix unmarshals the XID and message type shared by every message
// and returns a reader positioned at the type-specific remainder.
func DecodePrefix(data []byte) (Prefix, *bytes.Reader, error) {
	reader := bytes.NewReader(data)

	var prefix Prefix
	if _, err := xdr.Unmarshal(reader, &prefix); err != nil {
		return Prefix{}, nil, fmt.Errorf("unmarshal message prefix: %w", err)
	}
	return prefix, reader, nil
}

// DecodeReplyStatus unmarshals the status field following a REPLY prefix.
func DecodeReplyStatus(reader *bytes.Reader) (uint32, error) {
	var status uint32
	if _, err := xdr.Unmarshal(reader, &status); err != nil {
		return 0, fmt.Errorf("unmarshal reply status: %w", err)
	}
	return status, nil
}

// DecodeResult unmarshals a reply's result struct.
func DecodeResult(reader *bytes.Reader, result interface{}) error {
	if _, err := xdr.Unmarshal(reader, result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// DecodeEventPayload unmarshals the notification following an EVENT prefix.
func DecodeEventPayload(reader *bytes.Reader) (string, error) {
	var payload EventPayload
	if _, err := xdr.Unmarshal(reader, &payload); err != nil {
		return "", fmt.Errorf("unmarshal event payload: %w", err)
	}
	return payload.Payload, nil
}
