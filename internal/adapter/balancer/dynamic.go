package balancer

import (
	"context"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// dynamicRateLimitHighWater is the in-flight count above which a
// target's admission ceiling tightens from 100 to 50.
const dynamicRateLimitHighWater = 100

// DynamicRateLimiting picks the first healthy target, in list order,
// whose in-flight count is under a ceiling that tightens as that
// target gets busier: 100 while in-flight is at or below 100, 50 once
// it exceeds that.
type DynamicRateLimiting struct{}

func NewDynamicRateLimiting() *DynamicRateLimiting { return &DynamicRateLimiting{} }

func (d *DynamicRateLimiting) Name() string { return string(domain.StrategyDynamicRateLimiting) }

func (d *DynamicRateLimiting) Select(_ context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	for _, t := range targets {
		inFlight := in.Stats[t].InFlight
		limit := int64(100)
		if inFlight > dynamicRateLimitHighWater {
			limit = 50
		}
		if inFlight < limit {
			return t, true
		}
	}
	return "", false
}

var _ ports.TargetSelector = (*DynamicRateLimiting)(nil)
