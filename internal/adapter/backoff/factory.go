package backoff

import (
	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

type creatorFunc func(domain.RetryConfig) ports.RetryStrategy

var creators = map[domain.RetryStrategyType]creatorFunc{
	domain.RetryFixedDelay:          func(c domain.RetryConfig) ports.RetryStrategy { return NewFixedDelay(c) },
	domain.RetryExponentialBackoff: func(c domain.RetryConfig) ports.RetryStrategy { return NewExponentialBackoff(c) },
	domain.RetryLinearBackoff:       func(c domain.RetryConfig) ports.RetryStrategy { return NewLinearBackoff(c) },
	domain.RetryRandomDelay:         func(c domain.RetryConfig) ports.RetryStrategy { return NewRandomDelay(c) },
	domain.RetryIncrementalBackoff: func(c domain.RetryConfig) ports.RetryStrategy { return NewIncrementalBackoff(c) },
	domain.RetryFibonacciBackoff:   func(c domain.RetryConfig) ports.RetryStrategy { return NewFibonacciBackoff(c) },
	domain.RetryGeometricBackoff:   func(c domain.RetryConfig) ports.RetryStrategy { return NewGeometricBackoff(c) },
	domain.RetryHarmonicBackoff:     func(c domain.RetryConfig) ports.RetryStrategy { return NewHarmonicBackoff(c) },
	domain.RetryJitterBackoff:       func(c domain.RetryConfig) ports.RetryStrategy { return NewJitterBackoff(c) },
}

// New builds the RetryStrategy named by cfg.StrategyType. An
// unrecognised tag falls back to FixedDelay, matching the teacher's
// pattern of defaulting unknown balancer strategies rather than
// failing construction.
func New(cfg domain.RetryConfig) ports.RetryStrategy {
	if create, ok := creators[cfg.StrategyType]; ok {
		return create(cfg)
	}
	return NewFixedDelay(cfg)
}

// AvailableStrategies lists every registered retry strategy tag.
func AvailableStrategies() []domain.RetryStrategyType {
	names := make([]domain.RetryStrategyType, 0, len(creators))
	for name := range creators {
		names = append(names, name)
	}
	return names
}
