// Package loadbalance selects which endpoint serves the next exchange.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity endpoints
//   - WeightedRandom:  endpoints with different capacity
//   - ConsistentHash:  a fixed key pins exchanges to one endpoint
package loadbalance

import (
	"errors"
	"fmt"

	"mini-jsonrpc/registry"
)

// ErrNoEndpoints is returned by Pick when the endpoint list is empty.
var ErrNoEndpoints = errors.New("no endpoints available")

// Balancer picks one endpoint per exchange. Implementations must be safe for
// concurrent use.
type Balancer interface {
	Pick(eps []registry.Endpoint) (*registry.Endpoint, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name. key is only used by
// "consistent-hash".
func New(name, key string) (Balancer, error) {
	switch name {
	case "", "round-robin", "roundrobin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random", "weighted":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(key), nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", name)
	}
}
