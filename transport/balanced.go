package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"mini-jsonrpc/loadbalance"
	"mini-jsonrpc/registry"
)

// Factory builds the transport for one endpoint address.
type Factory func(addr string) (Transport, error)

// Balanced spreads exchanges over the endpoints a registry knows for one service.
// The endpoint list is discovered on first use and then kept current from the
// registry's Watch channel; transports are built once per address and closed when
// their address leaves the registry.
type Balanced struct {
	reg      registry.Registry
	service  string
	balancer loadbalance.Balancer
	factory  Factory
	logger   *zap.Logger

	stopWatch context.CancelFunc
	watchDone chan struct{}

	mu     sync.Mutex
	eps    []registry.Endpoint
	loaded bool   // eps reflects the registry
	gen    uint64 // bumped by every watch update
	conns  map[string]Transport
	closed bool
}

// NewBalanced creates a Balanced transport and starts watching service. logger may
// be nil. Close stops the watch.
func NewBalanced(reg registry.Registry, service string, b loadbalance.Balancer, factory Factory, logger *zap.Logger) *Balanced {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	bal := &Balanced{
		reg:       reg,
		service:   service,
		balancer:  b,
		factory:   factory,
		logger:    logger.With(zap.String("service", service), zap.String("balancer", b.Name())),
		stopWatch: cancel,
		watchDone: make(chan struct{}),
		conns:     make(map[string]Transport),
	}
	go bal.watch(reg.Watch(ctx, service))
	return bal
}

func (b *Balanced) watch(updates <-chan []registry.Endpoint) {
	defer close(b.watchDone)
	if updates == nil {
		return
	}
	for eps := range updates {
		b.update(eps)
	}
}

// update replaces the endpoint list and closes transports of removed addresses.
func (b *Balanced) update(eps []registry.Endpoint) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.eps = eps
	b.loaded = true
	b.gen++

	live := make(map[string]struct{}, len(eps))
	for _, ep := range eps {
		live[ep.Addr] = struct{}{}
	}
	var stale []Transport
	for addr, t := range b.conns {
		if _, ok := live[addr]; !ok {
			delete(b.conns, addr)
			stale = append(stale, t)
			b.logger.Debug("endpoint removed", zap.String("addr", addr))
		}
	}
	b.mu.Unlock()

	for _, t := range stale {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				b.logger.Debug("close removed endpoint", zap.Error(err))
			}
		}
	}
}

func (b *Balanced) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	eps, err := b.endpoints(ctx)
	if err != nil {
		return nil, err
	}
	ep, err := b.balancer.Pick(eps)
	if err != nil {
		return nil, &Error{Kind: KindNoEndpoint, Op: "pick", Addr: b.service, Err: err}
	}

	t, err := b.transportFor(ep.Addr)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("exchange routed", zap.String("addr", ep.Addr))
	return t.Exchange(ctx, payload)
}

// endpoints returns the cached list, discovering it while no watch update has
// arrived yet.
func (b *Balanced) endpoints(ctx context.Context) ([]registry.Endpoint, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &Error{Kind: KindClosed, Op: "exchange", Addr: b.service, Err: ErrPoolClosed}
	}
	if b.loaded {
		eps := b.eps
		b.mu.Unlock()
		if len(eps) == 0 {
			return nil, &Error{Kind: KindNoEndpoint, Op: "discover", Addr: b.service, Err: registry.ErrNoEndpoints}
		}
		return eps, nil
	}
	gen := b.gen
	b.mu.Unlock()

	eps, err := b.reg.Discover(ctx, b.service)
	if err != nil {
		return nil, &Error{Kind: KindNoEndpoint, Op: "discover", Addr: b.service, Err: err}
	}

	b.mu.Lock()
	if b.gen == gen && !b.loaded {
		b.eps = eps
		b.loaded = true
	}
	b.mu.Unlock()
	return eps, nil
}

func (b *Balanced) transportFor(addr string) (Transport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, &Error{Kind: KindClosed, Op: "exchange", Addr: b.service, Err: ErrPoolClosed}
	}
	if t, ok := b.conns[addr]; ok {
		return t, nil
	}
	if b.loaded && !hasAddr(b.eps, addr) {
		// removed by a watch update after it was picked
		return nil, &Error{Kind: KindNoEndpoint, Op: "connect", Addr: addr, Err: registry.ErrNoEndpoints}
	}
	t, err := b.factory(addr)
	if err != nil {
		return nil, &Error{Kind: KindIO, Op: "connect", Addr: addr, Err: fmt.Errorf("build transport: %w", err)}
	}
	b.conns[addr] = t
	return t, nil
}

// Close stops the watch and closes every cached endpoint transport, then the
// registry. Each is closed only if it implements io.Closer.
func (b *Balanced) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()

	b.stopWatch()
	<-b.watchDone

	var errs []error
	for addr, t := range conns {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			}
		}
	}
	if c, ok := b.reg.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry: %w", err))
		}
	}
	return errors.Join(errs...)
}

func hasAddr(eps []registry.Endpoint, addr string) bool {
	for _, ep := range eps {
		if ep.Addr == addr {
			return true
		}
	}
	return false
}
