// Package balancer implements C7: the eight target-selection
// strategies behind ports.TargetSelector, plus a factory that falls
// back to RoundRobin on an unrecognized strategy name. spec.md §4.7.
package balancer

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// healthyTargets filters in.Targets down to the ones in.Healthy does
// not mark unhealthy: a nil Healthy map, or a target absent from it,
// counts as healthy.
func healthyTargets(in ports.SelectionInput) []domain.Target {
	if in.Healthy == nil {
		return in.Targets
	}
	out := make([]domain.Target, 0, len(in.Targets))
	for _, t := range in.Targets {
		if healthy, known := in.Healthy[t]; !known || healthy {
			out = append(out, t)
		}
	}
	return out
}

// underCeiling reports whether t may still take work under
// in.RequestCeiling (0 meaning no ceiling), measured against the
// target's cumulative request count rather than its current in-flight
// count: once a target has served RequestCeiling requests it stays
// ineligible for the life of the process, it does not become eligible
// again just because its in-flight count drops.
func underCeiling(in ports.SelectionInput, t domain.Target) bool {
	if in.RequestCeiling <= 0 {
		return true
	}
	return in.Stats[t].RequestCount < int64(in.RequestCeiling)
}

// RoundRobin cycles through the healthy target list in order.
type RoundRobin struct {
	counter uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Name() string { return string(domain.StrategyRoundRobin) }

func (r *RoundRobin) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}
	idx := atomic.AddUint64(&r.counter, 1) - 1
	return targets[idx%uint64(len(targets))], true
}

// Random picks uniformly among healthy targets.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string { return string(domain.StrategyRandom) }

func (r *Random) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}
	r.mu.Lock()
	idx := r.rng.Intn(len(targets))
	r.mu.Unlock()
	return targets[idx], true
}

// LeastConnections picks the healthy target with the fewest in-flight
// requests.
type LeastConnections struct{}

func NewLeastConnections() *LeastConnections { return &LeastConnections{} }

func (l *LeastConnections) Name() string { return string(domain.StrategyLeastConnections) }

func (l *LeastConnections) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}
	best := targets[0]
	bestLoad := in.Stats[best].InFlight
	for _, t := range targets[1:] {
		if load := in.Stats[t].InFlight; load < bestLoad {
			best, bestLoad = t, load
		}
	}
	return best, true
}

// RateLimiting picks the first healthy target, in list order, that is
// still under the route's per-target cumulative request ceiling.
type RateLimiting struct{}

func NewRateLimiting() *RateLimiting { return &RateLimiting{} }

func (r *RateLimiting) Name() string { return string(domain.StrategyRateLimiting) }

func (r *RateLimiting) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	for _, t := range targets {
		if underCeiling(in, t) {
			return t, true
		}
	}
	return "", false
}

// WeightedRoundRobin distributes selections proportionally to each
// target's configured weight by drawing p uniformly in [0, sum(weight))
// and returning the first target, in list order, whose cumulative
// weight exceeds p.
type WeightedRoundRobin struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewWeightedRoundRobin() *WeightedRoundRobin {
	return &WeightedRoundRobin{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (w *WeightedRoundRobin) Name() string { return string(domain.StrategyWeightedRoundRobin) }

func (w *WeightedRoundRobin) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}

	total := 0
	for _, t := range targets {
		weight := in.Weights[t]
		if weight <= 0 {
			weight = 1
		}
		total += weight
	}

	w.mu.Lock()
	p := w.rng.Float64() * float64(total)
	w.mu.Unlock()

	cumulative := 0.0
	for _, t := range targets {
		weight := in.Weights[t]
		if weight <= 0 {
			weight = 1
		}
		cumulative += float64(weight)
		if p < cumulative {
			return t, true
		}
	}
	return targets[len(targets)-1], true
}

var (
	_ ports.TargetSelector = (*RoundRobin)(nil)
	_ ports.TargetSelector = (*Random)(nil)
	_ ports.TargetSelector = (*LeastConnections)(nil)
	_ ports.TargetSelector = (*RateLimiting)(nil)
	_ ports.TargetSelector = (*WeightedRoundRobin)(nil)
)
