package balancer

import (
	"time"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// New builds a TargetSelector for strategy, falling back to
// RoundRobin on an unrecognized name.
func New(strategy domain.BalanceStrategy) ports.TargetSelector {
	switch strategy {
	case domain.StrategyRoundRobin:
		return NewRoundRobin()
	case domain.StrategyRandom:
		return NewRandom(time.Now().UnixNano())
	case domain.StrategyLeastConnections:
		return NewLeastConnections()
	case domain.StrategyRateLimiting:
		return NewRateLimiting()
	case domain.StrategyResourceBased:
		return NewResourceBased()
	case domain.StrategyWeightedRoundRobin:
		return NewWeightedRoundRobin()
	case domain.StrategyDynamicRateLimiting:
		return NewDynamicRateLimiting()
	case domain.StrategyIPHash:
		return NewIPHash()
	default:
		return NewRoundRobin()
	}
}
