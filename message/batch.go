package message

import (
	"encoding/json"
	"fmt"

	"mini-jsonrpc/codec"
)

// EncodeBatch serializes requests as one JSON array, preserving their order.
func EncodeBatch(c codec.Codec, reqs []*Request) ([]byte, error) {
	if reqs == nil {
		reqs = []*Request{}
	}
	return codecOrDefault(c).Encode(reqs)
}

// DecodeBatch decodes a batch reply. Servers normally answer with an array, but some
// answer a one-member batch (or reject the whole batch) with a bare object, so both
// shapes are accepted. The returned order is the wire order and carries no meaning:
// callers correlate by ID.
//
// A member that breaks the envelope rules does not spoil the others: it is returned
// in invalid, with ProtocolError.ID set when its id could still be read. err is only
// set when the payload as a whole is not an array or object of JSON values.
func DecodeBatch(c codec.Codec, raw []byte) (resps []*Response, invalid []*ProtocolError, err error) {
	c = codecOrDefault(c)

	var members []json.RawMessage
	switch firstByte(raw) {
	case '{':
		if !json.Valid(raw) {
			return nil, nil, &ProtocolError{Op: "decode batch", Index: -1, Err: fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)}
		}
		members = []json.RawMessage{raw}
	case '[':
		if err := c.Decode(raw, &members); err != nil {
			return nil, nil, &ProtocolError{Op: "decode batch", Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
		}
	default:
		return nil, nil, &ProtocolError{Op: "decode batch", Index: -1, Err: fmt.Errorf("%w: expected array or object", ErrMalformedResponse)}
	}

	resps = make([]*Response, 0, len(members))
	for i, member := range members {
		var fields map[string]json.RawMessage
		if !isObject(member) || c.Decode(member, &fields) != nil {
			invalid = append(invalid, &ProtocolError{Op: "decode batch", Index: i, Err: fmt.Errorf("%w: member is not a JSON object", ErrMalformedResponse)})
			continue
		}
		resp, err := responseFromFields(c, fields)
		if err != nil {
			invalid = append(invalid, &ProtocolError{Op: "decode batch", Index: i, ID: memberID(fields), Err: err})
			continue
		}
		resps = append(resps, resp)
	}
	return resps, invalid, nil
}

// memberID recovers a usable id from an invalid member, or nil.
func memberID(fields map[string]json.RawMessage) *ID {
	raw, ok := fields["id"]
	if !ok {
		return nil
	}
	var id ID
	if err := id.UnmarshalJSON(raw); err != nil || id.IsNull() {
		return nil
	}
	return &id
}

// ParseBatchRequest decodes a request array; used by servers and test doubles.
func ParseBatchRequest(c codec.Codec, raw []byte) ([]*Request, error) {
	c = codecOrDefault(c)

	var members []json.RawMessage
	if err := c.Decode(raw, &members); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out := make([]*Request, 0, len(members))
	for i, m := range members {
		req, err := ParseRequest(c, m)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		out = append(out, req)
	}
	return out, nil
}

// IsBatch reports whether raw is a JSON array.
func IsBatch(raw []byte) bool {
	return firstByte(raw) == '['
}
