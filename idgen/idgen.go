// Package idgen produces request identifiers for client-issued calls.
//
// A Generator is owned by one client. It is the only source of ids for that client's
// calls, which is what makes ids unique within a batch and across the client's lifetime.
package idgen

import (
	"sync/atomic"

	"github.com/google/uuid"

	"mini-jsonrpc/message"
)

// Generator is the interface for generating request ids.
// Called on every outgoing call, so it must be goroutine-safe.
type Generator interface {
	Next() message.ID
}

// Counter yields strictly increasing integer ids.
// Uses an atomic counter for lock-free, goroutine-safe operation.
// The zero Counter starts at 1.
type Counter struct {
	last atomic.Int64 // Last id handed out
}

// NewCounter creates a counter whose first id is start.
func NewCounter(start int64) *Counter {
	c := &Counter{}
	c.last.Store(start - 1)
	return c
}

func (c *Counter) Next() message.ID {
	return message.IntID(c.last.Add(1))
}

// UUID yields random string ids, for servers that expect opaque string identifiers.
type UUID struct{}

func (UUID) Next() message.ID {
	return message.StringID(uuid.NewString())
}

// New returns the generator for a configuration name: "counter" (default) or "uuid".
func New(kind string) (Generator, bool) {
	switch kind {
	case "", "counter":
		return NewCounter(1), true
	case "uuid":
		return UUID{}, true
	}
	return nil, false
}
