// Package config implements C9: TOML config loading, validation and
// hot reload by mtime polling, with an optional fsnotify nudge for
// lower-latency pickup. spec.md §4.9.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
)

// DefaultPollInterval is the mtime-stat cadence spec.md §4.9 requires
// regardless of whether fsnotify is available on the platform.
const DefaultPollInterval = 5 * time.Second

// File is the root shape of Config.toml.
type File struct {
	Log    LogConfig          `toml:"log"`
	Routes []RouteConfig      `toml:"route" validate:"required,min=1,dive"`
}

// LogConfig mirrors logger.Config's on-disk shape.
type LogConfig struct {
	Level      string `toml:"level"`
	Dir        string `toml:"dir"`
	Theme      string `toml:"theme"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	FileOutput bool   `toml:"file_output"`
	Pretty     bool   `toml:"pretty"`
}

// RouteConfig is one [[route]] table, translated into a domain.Route
// after validation.
type RouteConfig struct {
	ListenAddr           string              `toml:"listen_addr" validate:"required"`
	Targets              []string            `toml:"targets" validate:"required,min=1"`
	TargetWeights        map[string]int      `toml:"target_weights"`
	Strategy             string              `toml:"strategy" validate:"required"`
	ResourceEndpoints    map[string]string   `toml:"resource_endpoints"`
	MaxRequestsPerTarget int                 `toml:"max_requests_per_target"`
	CacheTTLSeconds      int                 `toml:"cache_ttl_seconds"`
	CacheCapacity        int                 `toml:"cache_capacity"`
	CacheEnabledPrefixes []string            `toml:"cache_enabled_prefixes"`
	HealthCheckEndpoints map[string]string   `toml:"health_check_endpoints"`
	ConnectTimeoutMS     int                 `toml:"connect_timeout_ms"`
	IOTimeoutMS          int                 `toml:"io_timeout_ms"`
	Retry                RetryConfig         `toml:"retry"`
	RateLimit            *RateLimitConfig    `toml:"rate_limit"`
	RewriteRules         []RewriteRuleConfig `toml:"rewrite_rule"`
}

// RewriteRuleConfig is one [[route.rewrite_rule]] table: a request
// modification rule applied, in order, before the request is
// forwarded upstream.
type RewriteRuleConfig struct {
	PathContains  string            `toml:"path_contains"`
	RewriteURL    string            `toml:"rewrite_url"`
	RemoveHeaders []string          `toml:"remove_headers"`
	AddHeaders    map[string]string `toml:"add_headers"`
}

// RetryConfig mirrors domain.RetryConfig in TOML-friendly units.
type RetryConfig struct {
	StrategyType     string `toml:"strategy_type"`
	MaxDelayMS       int    `toml:"max_delay_ms"`
	MaxAttempts      int    `toml:"max_attempts"`
	InitialDelayMS   int    `toml:"initial_delay_ms"`
	IncrementDelayMS int    `toml:"increment_delay_ms"`
	MinDelayMS       int    `toml:"min_delay_ms"`
	Multiplier       float64 `toml:"multiplier"`
	IncrementStepMS  int    `toml:"increment_step_ms"`
	StepIncrementMS  int    `toml:"step_increment_ms"`
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
}

// RateLimitConfig mirrors domain.RateLimitConfig in TOML-friendly units.
type RateLimitConfig struct {
	Algorithm      string  `toml:"algorithm"`
	Limit          int     `toml:"limit"`
	WindowMS       int     `toml:"window_ms"`
	RefillAmount   int     `toml:"refill_amount"`
	Capacity       int     `toml:"capacity"`
	LeakRateMS     int     `toml:"leak_rate_ms"`
	GranularityMS  int     `toml:"granularity_ms"`
}

var validate = validator.New()

// Load parses and validates path, returning the translated domain
// routes ready for the application to wire up.
func Load(path string) (*File, []domain.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
	}

	if err := validate.Struct(&f); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfigLoad, err)
	}

	routes := make([]domain.Route, 0, len(f.Routes))
	for _, rc := range f.Routes {
		routes = append(routes, rc.toDomain())
	}

	return &f, routes, nil
}

func (rc RouteConfig) toDomain() domain.Route {
	targets := make([]domain.Target, len(rc.Targets))
	for i, t := range rc.Targets {
		targets[i] = domain.Target(t)
	}

	weights := make(map[domain.Target]int, len(rc.TargetWeights))
	for t, w := range rc.TargetWeights {
		weights[domain.Target(t)] = w
	}

	resourceEndpoints := make(map[domain.Target]string, len(rc.ResourceEndpoints))
	for t, u := range rc.ResourceEndpoints {
		resourceEndpoints[domain.Target(t)] = u
	}

	healthEndpoints := make(map[domain.Target]string, len(rc.HealthCheckEndpoints))
	for t, u := range rc.HealthCheckEndpoints {
		healthEndpoints[domain.Target(t)] = u
	}

	return domain.Route{
		ListenAddr:           rc.ListenAddr,
		Targets:              targets,
		TargetWeights:        weights,
		Strategy:             domain.BalanceStrategy(rc.Strategy),
		ResourceEndpoints:    resourceEndpoints,
		MaxRequestsPerTarget: rc.MaxRequestsPerTarget,
		CacheTTL:             time.Duration(rc.CacheTTLSeconds) * time.Second,
		CacheCapacity:        rc.CacheCapacity,
		CacheEnabledPrefixes: rc.CacheEnabledPrefixes,
		HealthCheckEndpoints: healthEndpoints,
		ConnectTimeout:       time.Duration(rc.ConnectTimeoutMS) * time.Millisecond,
		IOTimeout:            time.Duration(rc.IOTimeoutMS) * time.Millisecond,
		Retry:                rc.Retry.toDomain(),
		RateLimit:            rc.RateLimit.toDomain(),
		RewriteRules:         toRewriteRules(rc.RewriteRules),
	}
}

func toRewriteRules(rules []RewriteRuleConfig) []domain.RewriteRule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]domain.RewriteRule, len(rules))
	for i, r := range rules {
		out[i] = domain.RewriteRule{
			PathContains:  r.PathContains,
			ReplacePath:   r.RewriteURL,
			RemoveHeaders: r.RemoveHeaders,
			AddHeaders:    r.AddHeaders,
		}
	}
	return out
}

func (rc RetryConfig) toDomain() domain.RetryConfig {
	return domain.RetryConfig{
		StrategyType:   domain.RetryStrategyType(rc.StrategyType),
		MaxDelay:       time.Duration(rc.MaxDelayMS) * time.Millisecond,
		MaxAttempts:    rc.MaxAttempts,
		InitialDelay:   time.Duration(rc.InitialDelayMS) * time.Millisecond,
		IncrementDelay: time.Duration(rc.IncrementDelayMS) * time.Millisecond,
		MinDelay:       time.Duration(rc.MinDelayMS) * time.Millisecond,
		Multiplier:     rc.Multiplier,
		IncrementStep:  time.Duration(rc.IncrementStepMS) * time.Millisecond,
		StepIncrement:  time.Duration(rc.StepIncrementMS) * time.Millisecond,
		ConnectTimeout: time.Duration(rc.ConnectTimeoutMS) * time.Millisecond,
	}
}

func (rc *RateLimitConfig) toDomain() *domain.RateLimitConfig {
	if rc == nil {
		return nil
	}
	return &domain.RateLimitConfig{
		Algorithm:    domain.RateLimitAlgorithm(rc.Algorithm),
		Limit:        rc.Limit,
		Window:       time.Duration(rc.WindowMS) * time.Millisecond,
		RefillAmount: rc.RefillAmount,
		Capacity:     rc.Capacity,
		LeakRate:     time.Duration(rc.LeakRateMS) * time.Millisecond,
		Granularity:  time.Duration(rc.GranularityMS) * time.Millisecond,
	}
}
