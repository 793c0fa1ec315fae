// Package stats holds the shared, concurrency-safe TargetStats map
// that feeds the target selectors (C7) and is updated by the proxy
// engine (C8) around every dispatch.
package stats

import (
	"sync"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// Registry is a keyed set of domain.TargetStats, created lazily per
// target on first touch.
type Registry struct {
	mu    sync.RWMutex
	stats map[domain.Target]*domain.TargetStats
}

func New() *Registry {
	return &Registry{stats: make(map[domain.Target]*domain.TargetStats)}
}

func (r *Registry) entry(target domain.Target) *domain.TargetStats {
	r.mu.RLock()
	s, ok := r.stats[target]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stats[target]; ok {
		return s
	}
	s = domain.NewTargetStats()
	r.stats[target] = s
	return s
}

func (r *Registry) IncrementInFlight(target domain.Target) { r.entry(target).IncrementInFlight() }
func (r *Registry) DecrementInFlight(target domain.Target) { r.entry(target).DecrementInFlight() }
func (r *Registry) IncrementRequests(target domain.Target) { r.entry(target).IncrementRequests() }

func (r *Registry) SetHealthy(target domain.Target, healthy bool) {
	r.entry(target).SetHealthy(healthy)
}

// Snapshot returns a point-in-time, read-only view for the given
// targets, suitable for ports.SelectionInput.Stats.
func (r *Registry) Snapshot(targets []domain.Target) ports.StatsSnapshot {
	out := make(ports.StatsSnapshot, len(targets))
	for _, t := range targets {
		s := r.entry(t)
		out[t] = ports.TargetStatsView{
			InFlight:     s.InFlight(),
			RequestCount: s.RequestCount(),
		}
	}
	return out
}

// HealthyMap returns the current healthy flag for every registered
// target.
func (r *Registry) HealthyMap() map[domain.Target]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.Target]bool, len(r.stats))
	for t, s := range r.stats {
		out[t] = s.Healthy()
	}
	return out
}
