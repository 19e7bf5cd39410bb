package message

import (
	"encoding/json"
	"fmt"

	"mini-jsonrpc/codec"
)

// Params holds call parameters in exactly one of the two JSON-RPC forms:
// positional (a JSON array) or named (a JSON object).
//
//	message.Positional("0000...abcd", 2)
//	message.Named(map[string]any{"blockhash": "0000...abcd", "verbosity": 2})
//
// Add and Set may be chained, but a value carrying both forms is rejected by
// BuildRequest with ErrInvalidParams.
type Params struct {
	positional []any
	named      map[string]any
	hasPos     bool
}

// Positional builds array parameters. Positional() with no arguments encodes as [].
func Positional(args ...any) Params {
	return Params{positional: args, hasPos: true}
}

// Named builds object parameters.
func Named(m map[string]any) Params {
	named := make(map[string]any, len(m))
	for k, v := range m {
		named[k] = v
	}
	return Params{named: named}
}

// Add appends a positional argument.
func (p Params) Add(v any) Params {
	p.positional = append(append([]any(nil), p.positional...), v)
	p.hasPos = true
	return p
}

// Set adds a named argument.
func (p Params) Set(name string, v any) Params {
	named := make(map[string]any, len(p.named)+1)
	for k, old := range p.named {
		named[k] = old
	}
	named[name] = v
	p.named = named
	return p
}

// WithDefaults builds positional parameters for a method whose trailing arguments
// are optional. defaults lines up with the last len(defaults) entries of args and a
// nil arg means "not given". Trailing absent optionals are dropped; an absent
// optional followed by a given one is replaced by its default so later arguments
// keep their positions. A nil default in that position is an ErrInvalidParams.
//
//	WithDefaults([]any{"addr", nil, nil}, []any{1, false}) // ["addr"]
//	WithDefaults([]any{"addr", nil, true}, []any{1, false}) // ["addr", 1, true]
func WithDefaults(args []any, defaults []any) (Params, error) {
	if len(defaults) > len(args) {
		return Params{}, fmt.Errorf("%w: %d defaults for %d arguments", ErrInvalidParams, len(defaults), len(args))
	}
	out := append([]any(nil), args...)
	required := len(args) - len(defaults)
	last := -1
	for i := len(defaults) - 1; i >= 0; i-- {
		ai := required + i
		if out[ai] != nil {
			if last < 0 {
				last = ai
			}
			continue
		}
		if last < 0 {
			continue
		}
		if defaults[i] == nil {
			return Params{}, fmt.Errorf("%w: argument %d has no default", ErrInvalidParams, ai)
		}
		out[ai] = defaults[i]
	}
	if last < 0 {
		return Positional(out[:required]...), nil
	}
	return Positional(out[:last+1]...), nil
}

func (p Params) IsZero() bool {
	return !p.hasPos && p.named == nil
}

func (p Params) encode(c codec.Codec) (json.RawMessage, error) {
	switch {
	case p.hasPos && p.named != nil:
		return nil, fmt.Errorf("%w: mixes positional and named parameters", ErrInvalidParams)
	case p.hasPos:
		args := p.positional
		if args == nil {
			args = []any{}
		}
		return c.Encode(args)
	case p.named != nil:
		return c.Encode(p.named)
	}
	return nil, nil
}

func encodeParams(c codec.Codec, params any) (json.RawMessage, error) {
	var raw json.RawMessage

	switch p := params.(type) {
	case nil:
		return nil, nil
	case Params:
		if p.IsZero() {
			return nil, nil
		}
		return p.encode(c)
	case *Params:
		if p == nil || p.IsZero() {
			return nil, nil
		}
		return p.encode(c)
	case json.RawMessage:
		raw = p
	default:
		data, err := c.Encode(params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		raw = data
	}

	if isNull(raw) {
		return nil, nil
	}
	if !isStructured(raw) {
		return nil, fmt.Errorf("%w: params must encode to an array or object, got %s", ErrInvalidParams, truncate(raw))
	}
	return raw, nil
}

func truncate(raw []byte) string {
	const max = 32
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
