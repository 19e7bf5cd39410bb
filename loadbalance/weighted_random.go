package loadbalance

import (
	"math/rand/v2"

	"mini-jsonrpc/registry"
)

// WeightedRandomBalancer picks endpoints with probability proportional to their
// weight. Endpoints with a weight below 1 count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(eps []registry.Endpoint) (*registry.Endpoint, error) {
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}

	total := 0
	for i := range eps {
		total += weightOf(eps[i])
	}

	r := rand.IntN(total)
	for i := range eps {
		r -= weightOf(eps[i])
		if r < 0 {
			return &eps[i], nil
		}
	}
	return &eps[len(eps)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

func weightOf(ep registry.Endpoint) int {
	if ep.Weight < 1 {
		return 1
	}
	return ep.Weight
}
