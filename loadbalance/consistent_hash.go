package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"strings"
	"sync"

	"mini-jsonrpc/registry"
)

const replicas = 100

// ConsistentHashBalancer maps a fixed key onto a hash ring of endpoints, so every
// exchange goes to the same endpoint until the endpoint set changes. Each endpoint
// gets 100 virtual nodes to spread it evenly across the ring.
//
// The ring is rebuilt when Pick sees a different endpoint set.
type ConsistentHashBalancer struct {
	key string

	mu    sync.Mutex
	sig   string
	ring  []uint32          // sorted hashes
	nodes map[uint32]string // hash -> addr
}

func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{key: key}
}

func (b *ConsistentHashBalancer) Pick(eps []registry.Endpoint) (*registry.Endpoint, error) {
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	addr := b.Locate(eps, b.key)
	for i := range eps {
		if eps[i].Addr == addr {
			return &eps[i], nil
		}
	}
	return &eps[0], nil
}

// Locate returns the address responsible for key among eps.
func (b *ConsistentHashBalancer) Locate(eps []registry.Endpoint, key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sig := signature(eps); sig != b.sig {
		b.rebuild(eps)
		b.sig = sig
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx, _ := slices.BinarySearch(b.ring, hash)
	// wrap around past the largest node
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]]
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

func (b *ConsistentHashBalancer) rebuild(eps []registry.Endpoint) {
	b.ring = make([]uint32, 0, len(eps)*replicas)
	b.nodes = make(map[uint32]string, len(eps)*replicas)
	for _, ep := range eps {
		for i := 0; i < replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", ep.Addr, i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = ep.Addr
		}
	}
	slices.Sort(b.ring)
}

func signature(eps []registry.Endpoint) string {
	addrs := make([]string, len(eps))
	for i := range eps {
		addrs[i] = eps[i].Addr
	}
	slices.Sort(addrs)
	return strings.Join(addrs, ",")
}
