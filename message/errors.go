package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard JSON-RPC error codes.
const (
	ParseError     = -32700 // Invalid JSON was received by the server.
	InvalidRequest = -32600 // The JSON sent is not a valid Request object.
	MethodNotFound = -32601 // The method does not exist / is not available.
	InvalidParams  = -32602 // Invalid method parameter(s).
	InternalError  = -32603 // Internal JSON-RPC error.

	// Codes from and including ReservedMin to ReservedMax are reserved for pre-defined errors.
	ReservedMin = -32768
	ReservedMax = -32000

	// Implementation-defined server errors.
	ServerErrorMin = -32099
	ServerErrorMax = -32000
)

// Errors reported while building requests or validating responses.
// Every response-side sentinel wraps ErrMalformedResponse.
var (
	ErrInvalidRequest    = errors.New("invalid JSON-RPC request")
	ErrInvalidParams     = errors.New("invalid JSON-RPC params")
	ErrMalformedResponse = errors.New("malformed JSON-RPC response")
	ErrInvalidEnvelope   = fmt.Errorf("%w: invalid envelope", ErrMalformedResponse)
	ErrInvalidVersion    = fmt.Errorf("%w: jsonrpc must be %q", ErrMalformedResponse, Version)
	ErrInvalidID         = fmt.Errorf("%w: invalid id", ErrMalformedResponse)
)

// RPCError is a well-formed error reported by the server. It is data, not a failure of
// the client: callers inspect Code to decide what to do.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewError(code int, msg string) *RPCError {
	return &RPCError{Code: code, Message: msg}
}

// WithData attaches a serialized data member.
func (e *RPCError) WithData(data json.RawMessage) *RPCError {
	e.Data = data
	return e
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc error %d: %s (data: %s)", e.Code, e.Message, truncate(e.Data))
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Reserved reports whether the code lies in the band reserved by the protocol.
func (e *RPCError) Reserved() bool {
	return e.Code >= ReservedMin && e.Code <= ReservedMax
}

// Kind names the error class of the code, for diagnostics only.
func (e *RPCError) Kind() string {
	switch e.Code {
	case ParseError:
		return "parse error"
	case InvalidRequest:
		return "invalid request"
	case MethodNotFound:
		return "method not found"
	case InvalidParams:
		return "invalid params"
	case InternalError:
		return "internal error"
	}
	switch {
	case e.Code >= ServerErrorMin && e.Code <= ServerErrorMax:
		return "server error"
	case e.Reserved():
		return "reserved"
	}
	return "application error"
}

// ProtocolError reports response bytes that violate the JSON-RPC envelope.
// Index is the batch member position, or -1 for a single response. ID is the
// offending batch member's id when it could be read.
type ProtocolError struct {
	Op    string
	Index int
	ID    *ID
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: entry %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
