// etcd-backed Registry.
//
//	Key:   /mini-jsonrpc/{service}/{addr}
//	Value: JSON-encoded Endpoint
//
// Registration uses TTL leases so an endpoint that stops renewing disappears on
// its own.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/mini-jsonrpc/"

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // safe for concurrent use
	logger *zap.Logger
}

// NewEtcdRegistry connects to the given etcd endpoints. logger may be nil.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client: %w", err)
	}
	return &EtcdRegistry{client: c, logger: logger}, nil
}

func servicePrefix(service string) string {
	return keyPrefix + service + "/"
}

// Register puts ep under a lease of ttl seconds and keeps the lease alive until
// ctx is done.
//
// The lease id is kept local so one EtcdRegistry can register many endpoints.
func (r *EtcdRegistry) Register(ctx context.Context, service string, ep Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	if _, err = r.client.Put(ctx, servicePrefix(service)+ep.Addr, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put endpoint: %w", err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}

	// drain keepalive responses so the channel never fills
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("service", service), zap.String("addr", ep.Addr))
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, service string, addr string) error {
	if _, err := r.client.Delete(ctx, servicePrefix(service)+addr); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return nil
}

// Watch re-reads the full endpoint list on every change under the service prefix;
// an empty list means every endpoint is gone. The channel is closed once ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []Endpoint {
	ch := make(chan []Endpoint, 1)
	watchChan := r.client.Watch(ctx, servicePrefix(service), clientv3.WithPrefix())

	go func() {
		defer close(ch)
		for range watchChan {
			eps, err := r.Discover(ctx, service)
			switch {
			case errors.Is(err, ErrNoEndpoints):
				eps = nil
			case err != nil:
				r.logger.Debug("watch refresh failed", zap.String("service", service), zap.Error(err))
				continue
			}
			select {
			case ch <- eps:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all currently registered endpoints for service.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get endpoints: %w", err)
	}

	eps := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			r.logger.Warn("skipping malformed endpoint", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		eps = append(eps, ep)
	}
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	return eps, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
