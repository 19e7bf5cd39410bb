package client

import (
	"errors"
	"fmt"
	"strings"

	"mini-jsonrpc/message"
	"mini-jsonrpc/transport"
)

var (
	ErrEmptyBatch        = errors.New("empty batch")
	ErrIDMismatch        = errors.New("response id does not match request id")
	ErrUnknownResponseID = errors.New("response id was never sent")
	ErrNoResponse        = errors.New("no response for request id")
	ErrDuplicateID       = errors.New("duplicate request id")
)

// Kind classifies why a call failed.
type Kind uint8

const (
	KindTransport         Kind = iota // Channel failure; Err is the transport error
	KindProtocol                      // Reply violates JSON-RPC; Err is a *message.ProtocolError or decode error
	KindRPC                           // Server answered with an error object; Err is a *message.RPCError
	KindIDMismatch                    // Single call answered with another id
	KindUnknownResponseID             // Batch reply carries an id that was not sent
	KindEmptyBatch                    // CallBatch with no calls, rejected before any I/O
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindRPC:
		return "rpc"
	case KindIDMismatch:
		return "id mismatch"
	case KindUnknownResponseID:
		return "unknown response id"
	case KindEmptyBatch:
		return "empty batch"
	}
	return "unknown"
}

// Error is returned by every Client operation once a request was built.
// Want and Got are set for correlation failures.
type Error struct {
	Kind   Kind
	Method string
	Want   message.ID
	Got    message.ID
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("jsonrpc")
	if e.Method != "" {
		b.WriteString(" " + e.Method)
	}
	b.WriteString(": ")
	switch e.Kind {
	case KindIDMismatch:
		fmt.Fprintf(&b, "id mismatch: want %s, got %s", e.Want, e.Got)
	case KindUnknownResponseID:
		fmt.Fprintf(&b, "unknown response id %s", e.Got)
	case KindRPC, KindEmptyBatch:
		// the wrapped error already says it
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
		if e.Err != nil {
			b.WriteString(": " + e.Err.Error())
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRPC returns the server-reported error carried by err, if any.
func IsRPC(err error) (*message.RPCError, bool) {
	var rpcErr *message.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// IsTransport reports whether err is a channel failure rather than an answer from the
// server.
func IsTransport(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindTransport
	}
	var te *transport.Error
	return errors.As(err, &te)
}
