package adapter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/metrics"
	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/protocol/wire"
	"github.com/ybecker/catalogd/pkg/store"
)

// Dispatcher turns decoded call frames into coordinator invocations and reply
// frames. It is shared by every adapter so the procedure semantics cannot
// drift between transports.
type Dispatcher struct {
	coordinator *coordinator.Coordinator
	metrics     metrics.CallMetrics
}

// NewDispatcher creates a Dispatcher. Pass nil metrics to disable collection.
func NewDispatcher(coord *coordinator.Coordinator, callMetrics metrics.CallMetrics) *Dispatcher {
	if coord == nil {
		panic("dispatcher requires a coordinator")
	}
	if callMetrics == nil {
		callMetrics = metrics.NoopCallMetrics()
	}
	return &Dispatcher{coordinator: coord, metrics: callMetrics}
}

// Metrics exposes the call metrics so adapters can record connection counts.
func (d *Dispatcher) Metrics() metrics.CallMetrics {
	return d.metrics
}

// HandleFrame decodes one call frame, dispatches it, and returns the encoded
// reply. The sink becomes the callback channel for any session the call logs
// in. remote identifies the client for logging.
//
// A nil error with a reply is the normal path, including calls the server
// answers with an error status. A non-nil error means the connection should
// be dropped: the frame was unparseable or the context was cancelled.
func (d *Dispatcher) HandleFrame(ctx context.Context, frame []byte, sink notify.Sink, remote string) ([]byte, error) {
	header, reader, err := wire.DecodeCall(frame)
	if err != nil {
		// Unparseable frame: the stream is hosed.
		return nil, fmt.Errorf("decode call: %w", err)
	}

	start := time.Now()
	reply, err := d.dispatch(ctx, header, reader, sink, remote)
	d.metrics.RecordCall(wire.ProcedureName(header.Procedure), time.Since(start), err)

	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			return nil, err
		}
		// Store trouble surfaces to the caller as a generic call failure.
		logger.Warn("%s failed for %s: %v", wire.ProcedureName(header.Procedure), remote, err)
		reply, err = wire.EncodeReply(header.XID, wire.StatusError, nil)
		if err != nil {
			return nil, fmt.Errorf("encode error reply: %w", err)
		}
	}
	return reply, nil
}

// dispatch decodes the procedure arguments, invokes the coordinator, and
// encodes the reply.
func (d *Dispatcher) dispatch(ctx context.Context, header wire.CallHeader, reader *bytes.Reader, sink notify.Sink, remote string) ([]byte, error) {
	switch header.Procedure {
	case wire.ProcRegister:
		var args wire.RegisterArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		ok, err := d.coordinator.Register(ctx, args.Username, args.Password)
		if err != nil {
			return nil, err
		}
		return wire.EncodeReply(header.XID, wire.StatusOK, &wire.RegisterResult{OK: ok})

	case wire.ProcLogin:
		var args wire.LoginArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		// The connection behind the sink is the callback channel for this
		// session.
		token := d.coordinator.Login(ctx, args.Username, args.Password, sink)
		return wire.EncodeReply(header.XID, wire.StatusOK, &wire.LoginResult{Token: token})

	case wire.ProcLogout:
		var args wire.LogoutArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		d.coordinator.Logout(args.Token)
		return wire.EncodeReply(header.XID, wire.StatusOK, nil)

	case wire.ProcList:
		records, err := d.coordinator.List(ctx)
		if err != nil {
			return nil, err
		}
		result := wire.ListResult{Records: make([]wire.RecordInfo, 0, len(records))}
		for _, record := range records {
			result.Records = append(result.Records, recordInfo(record))
		}
		return wire.EncodeReply(header.XID, wire.StatusOK, &result)

	case wire.ProcOpen:
		var args wire.OpenArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		record, err := d.coordinator.Open(ctx, args.Filename, args.Token)
		if err != nil {
			return nil, err
		}
		result := wire.OpenResult{}
		if record != nil {
			result.Found = true
			result.Record = recordInfo(*record)
		}
		return wire.EncodeReply(header.XID, wire.StatusOK, &result)

	case wire.ProcUpload:
		var args wire.UploadArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		// Permission strings are validated here at the boundary; the
		// coordinator never sees malformed input.
		permission := store.Permission(args.Permission)
		if !permission.Valid() {
			logger.Debug("Rejecting upload from %s: bad permission %q", remote, args.Permission)
			return wire.EncodeReply(header.XID, wire.StatusError, nil)
		}
		d.coordinator.Upload(ctx, args.Token, args.Filename, args.Size, permission)
		return wire.EncodeReply(header.XID, wire.StatusOK, nil)

	case wire.ProcDelete:
		var args wire.DeleteArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		if err := d.coordinator.Delete(ctx, args.Filename, args.Token); err != nil {
			return nil, err
		}
		return wire.EncodeReply(header.XID, wire.StatusOK, nil)

	case wire.ProcUpdate:
		var args wire.UpdateArgs
		if err := wire.DecodeArgs(reader, &args); err != nil {
			return nil, err
		}
		if err := d.coordinator.Update(ctx, args.Filename, args.Size, args.Token); err != nil {
			return nil, err
		}
		return wire.EncodeReply(header.XID, wire.StatusOK, nil)

	default:
		logger.Debug("Unknown procedure %d from %s", header.Procedure, remote)
		return wire.EncodeReply(header.XID, wire.StatusError, nil)
	}
}

func recordInfo(record store.FileRecord) wire.RecordInfo {
	return wire.RecordInfo{
		Filename:   record.Filename,
		Size:       record.Size,
		Owner:      record.Owner,
		Permission: string(record.Permission),
	}
}
