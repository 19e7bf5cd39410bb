package codec

import (
	gojson "github.com/goccy/go-json"
)

// GoJSONCodec serializes with github.com/goccy/go-json, a drop-in encoding/json
// replacement that honours json.Marshaler and json.Unmarshaler (so json.RawMessage
// fields behave identically) while avoiding most reflection cost.
type GoJSONCodec struct{}

func (c *GoJSONCodec) Encode(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

func (c *GoJSONCodec) Decode(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

func (c *GoJSONCodec) Type() CodecType {
	return CodecTypeGoJSON
}
