// Package registry discovers the endpoints a JSON-RPC service is reachable at.
package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrNoEndpoints is returned by Discover when a service has no registered endpoint.
var ErrNoEndpoints = errors.New("no endpoints registered")

// Endpoint is one reachable JSON-RPC server.
type Endpoint struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, service string, ep Endpoint, ttl int64) error
	Deregister(ctx context.Context, service string, addr string) error
	Discover(ctx context.Context, service string) ([]Endpoint, error)
	Watch(ctx context.Context, service string) <-chan []Endpoint
}

// StaticRegistry is an in-memory Registry. It serves fixed endpoint lists from
// configuration and stands in for etcd in tests. ttl is ignored.
type StaticRegistry struct {
	mu       sync.RWMutex
	services map[string][]Endpoint
	watchers map[string][]chan []Endpoint
}

// NewStatic creates a StaticRegistry that serves eps for service.
func NewStatic(service string, eps ...Endpoint) *StaticRegistry {
	r := &StaticRegistry{
		services: make(map[string][]Endpoint),
		watchers: make(map[string][]chan []Endpoint),
	}
	if len(eps) > 0 {
		r.services[service] = append([]Endpoint(nil), eps...)
	}
	return r
}

func (r *StaticRegistry) Register(_ context.Context, service string, ep Endpoint, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eps := r.services[service]
	for i := range eps {
		if eps[i].Addr == ep.Addr {
			eps[i] = ep
			r.notify(service)
			return nil
		}
	}
	r.services[service] = append(eps, ep)
	r.notify(service)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, service string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eps := r.services[service]
	for i := range eps {
		if eps[i].Addr == addr {
			r.services[service] = append(eps[:i:i], eps[i+1:]...)
			r.notify(service)
			return nil
		}
	}
	return nil
}

func (r *StaticRegistry) Discover(_ context.Context, service string) ([]Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eps := r.services[service]
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	return append([]Endpoint(nil), eps...), nil
}

// Watch emits the endpoint list after every change until ctx is done. A slow
// reader only sees the latest list.
func (r *StaticRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)

	r.mu.Lock()
	r.watchers[service] = append(r.watchers[service], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[service]
		for i := range ws {
			if ws[i] == ch {
				r.watchers[service] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// notify must be called with mu held.
func (r *StaticRegistry) notify(service string) {
	eps := append([]Endpoint(nil), r.services[service]...)
	for _, ch := range r.watchers[service] {
		select {
		case <-ch:
		default:
		}
		ch <- eps
	}
}
