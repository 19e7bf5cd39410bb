package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type idKind uint8

const (
	idNull idKind = iota
	idInt
	idString
)

// ID is a JSON-RPC request identifier: an integer, a string or null.
// The zero value is the null id. IDs are comparable and can be used as map keys,
// which is how batch responses are correlated.
type ID struct {
	kind idKind
	num  int64
	str  string
}

func IntID(n int64) ID {
	return ID{kind: idInt, num: n}
}

func StringID(s string) ID {
	return ID{kind: idString, str: s}
}

func NullID() ID {
	return ID{}
}

func (id ID) IsNull() bool {
	return id.kind == idNull
}

// Int returns the numeric value and true for integer ids.
func (id ID) Int() (int64, bool) {
	return id.num, id.kind == idInt
}

// Str returns the string value and true for string ids.
func (id ID) Str() (string, bool) {
	return id.str, id.kind == idString
}

// String renders the id the way it appears on the wire.
func (id ID) String() string {
	switch id.kind {
	case idInt:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return strconv.Quote(id.str)
	}
	return "null"
}

// Ptr returns a pointer to a copy of id, handy for BuildRequest.
func (id ID) Ptr() *ID {
	return &id
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idInt:
		return strconv.AppendInt(nil, id.num, 10), nil
	case idString:
		return json.Marshal(id.str)
	}
	return []byte("null"), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}

	switch c := data[0]; {
	case c == 'n':
		if !bytes.Equal(data, []byte("null")) {
			return fmt.Errorf("%w: %s", ErrInvalidID, data)
		}
		*id = NullID()
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		*id = StringID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s is not an integer", ErrInvalidID, data)
		}
		*id = IntID(n)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	return nil
}
