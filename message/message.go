// Package message defines the JSON-RPC 2.0 envelopes exchanged between client and server.
//
// A Request is built per call, serialized through a codec.Codec and handed to a transport.
// The reply bytes come back through ParseResponse (single call) or DecodeBatch (batch),
// which validate the envelope before anything is correlated:
//
//	{"jsonrpc":"2.0","method":"getinfo","params":[],"id":1}     → Request
//	{"jsonrpc":"2.0","id":1,"result":{"version":1}}             → Response (success)
//	{"jsonrpc":"2.0","id":1,"error":{"code":-32601,...}}        → Response (failure)
//
// Exactly one of result/error is present in a valid response. Anything else is reported
// as a *ProtocolError and never as a partially populated Response.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mini-jsonrpc/codec"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Request carries a single call or notification.
//
//   - Call:         ID is non-nil, the server must answer with the same id.
//   - Notification: ID is nil, the server must not answer.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"` // Always a JSON array or object when set
	ID      *ID             `json:"id,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Encode serializes the request with c (codec.Default when nil).
func (r *Request) Encode(c codec.Codec) ([]byte, error) {
	return codecOrDefault(c).Encode(r)
}

// Response is the server's answer to one Request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// BuildRequest constructs a request for method. params may be nil, a Params value, a
// json.RawMessage, or any value that serializes to a JSON array or object. A nil id builds
// a notification.
func BuildRequest(c codec.Codec, method string, params any, id *ID) (*Request, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: empty method name", ErrInvalidRequest)
	}

	raw, err := encodeParams(codecOrDefault(c), params)
	if err != nil {
		return nil, err
	}

	req := &Request{
		JSONRPC: Version,
		Method:  method,
		Params:  raw,
	}
	if id != nil {
		idCopy := *id
		req.ID = &idCopy
	}
	return req, nil
}

// NewResultResponse builds a success response, serializing result with c.
func NewResultResponse(c codec.Codec, id ID, result any) (*Response, error) {
	raw, ok := result.(json.RawMessage)
	if !ok {
		var err error
		raw, err = codecOrDefault(c).Encode(result)
		if err != nil {
			return nil, err
		}
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds a failure response.
func NewErrorResponse(id ID, rpcErr *RPCError) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: rpcErr}
}

// Validate checks the envelope invariants of a constructed response.
func (r *Response) Validate() error {
	if r.JSONRPC != Version {
		return &ProtocolError{Op: "validate response", Index: -1, Err: ErrInvalidVersion}
	}
	hasResult := len(r.Result) > 0
	hasError := r.Error != nil
	if hasResult == hasError {
		return &ProtocolError{Op: "validate response", Index: -1, Err: envelopeErr(hasResult)}
	}
	return nil
}

// ParseRequest decodes a single request object. It is the inverse of Request.Encode.
func ParseRequest(c codec.Codec, raw []byte) (*Request, error) {
	var req Request
	if err := codecOrDefault(c).Decode(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.JSONRPC != Version {
		return nil, fmt.Errorf("%w: jsonrpc %q", ErrInvalidRequest, req.JSONRPC)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: empty method name", ErrInvalidRequest)
	}
	if len(req.Params) > 0 && !isStructured(req.Params) {
		return nil, fmt.Errorf("%w: params must be an array or object", ErrInvalidParams)
	}
	return &req, nil
}

// ParseResponse decodes and validates a single response object.
func ParseResponse(c codec.Codec, raw []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := codecOrDefault(c).Decode(raw, &fields); err != nil {
		return nil, &ProtocolError{Op: "parse response", Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	resp, err := responseFromFields(codecOrDefault(c), fields)
	if err != nil {
		return nil, &ProtocolError{Op: "parse response", Index: -1, Err: err}
	}
	return resp, nil
}

// responseFromFields validates a decoded object member by member. Member presence is
// taken from the map keys, so "result": null is a present (null) result.
//
// A null "error" member is treated as absent, matching servers that always emit both
// members and null out the unused one.
func responseFromFields(c codec.Codec, fields map[string]json.RawMessage) (*Response, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}

	rawVersion, ok := fields["jsonrpc"]
	if !ok {
		return nil, fmt.Errorf("%w: missing jsonrpc member", ErrInvalidVersion)
	}
	var version string
	if err := c.Decode(rawVersion, &version); err != nil || version != Version {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidVersion, string(rawVersion))
	}

	resp := &Response{JSONRPC: Version}

	if rawID, ok := fields["id"]; ok && len(rawID) > 0 {
		if err := resp.ID.UnmarshalJSON(rawID); err != nil {
			return nil, err
		}
	}

	rawResult, hasResult := fields["result"]
	rawError, hasError := fields["error"]
	if hasError && isNull(rawError) {
		hasError = false
	}
	if hasError && hasResult && isNull(rawResult) {
		hasResult = false
	}
	if hasResult == hasError {
		return nil, envelopeErr(hasResult)
	}

	if hasError {
		if !isObject(rawError) {
			return nil, fmt.Errorf("%w: error member is not an object", ErrInvalidEnvelope)
		}
		var rpcErr RPCError
		if err := c.Decode(rawError, &rpcErr); err != nil {
			return nil, fmt.Errorf("%w: error member: %v", ErrInvalidEnvelope, err)
		}
		resp.Error = &rpcErr
		return resp, nil
	}

	if len(rawResult) == 0 {
		rawResult = json.RawMessage("null")
	}
	resp.Result = append(json.RawMessage(nil), rawResult...)
	return resp, nil
}

func envelopeErr(hasBoth bool) error {
	if hasBoth {
		return fmt.Errorf("%w: both result and error present", ErrInvalidEnvelope)
	}
	return fmt.Errorf("%w: neither result nor error present", ErrInvalidEnvelope)
}

func codecOrDefault(c codec.Codec) codec.Codec {
	if c == nil {
		return codec.Default
	}
	return c
}

func firstByte(raw []byte) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func isNull(raw []byte) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw []byte) bool {
	return firstByte(raw) == '{'
}

func isStructured(raw []byte) bool {
	b := firstByte(raw)
	return b == '[' || b == '{'
}
