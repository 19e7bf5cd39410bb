// Package codec provides the JSON serialization capability used by the message model.
//
// The client never touches a JSON library directly: requests are encoded and responses
// decoded through a Codec, so the library can be swapped without changing framing or
// correlation logic.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0 // encoding/json
	CodecTypeGoJSON CodecType = 1 // github.com/goccy/go-json
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

// Default is the codec used when none is configured.
var Default Codec = &JSONCodec{}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeGoJSON {
		return &GoJSONCodec{}
	}

	return &JSONCodec{}
}

// ParseType maps a configuration name onto a CodecType.
func ParseType(name string) (CodecType, error) {
	switch name {
	case "", "json":
		return CodecTypeJSON, nil
	case "go-json", "gojson":
		return CodecTypeGoJSON, nil
	}
	return 0, fmt.Errorf("unknown codec %q", name)
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeGoJSON:
		return "go-json"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}
