package balancer

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// IPHash maps a client IP to a stable target index via xxhash, so the
// same client keeps landing on the same target across requests as
// long as the healthy set doesn't change.
type IPHash struct{}

func NewIPHash() *IPHash { return &IPHash{} }

func (h *IPHash) Name() string { return string(domain.StrategyIPHash) }

func (h *IPHash) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}
	sum := xxhash.Sum64String(in.ClientIP)
	idx := sum % uint64(len(targets))
	return targets[idx], true
}

var _ ports.TargetSelector = (*IPHash)(nil)
