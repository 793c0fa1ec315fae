package balancer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/go-resty/resty/v2"

	"github.com/sentryproxy/sentryproxy/internal/core/domain"
	"github.com/sentryproxy/sentryproxy/internal/core/ports"
)

// resourceMetrics is the shape expected at a target's metrics
// endpoint: independent CPU and memory utilization percentages the
// target self-reports.
type resourceMetrics struct {
	CPUUsagePercent    float32 `json:"cpu_usage_percent"`
	MemoryUsagePercent float32 `json:"memory_usage_percent"`
}

// metricsTTL bounds how long a fetched metrics sample is trusted
// before ResourceBased re-probes the target.
const metricsTTL = 2 * time.Second

// ResourceBased picks the healthy target reporting the lowest load,
// caching each target's last sample for metricsTTL and coalescing
// concurrent probes to the same target via singleflight.
type ResourceBased struct {
	client *resty.Client
	cache  *lru.LRU[domain.Target, float64]
	group  singleflight.Group
}

func NewResourceBased() *ResourceBased {
	return &ResourceBased{
		client: resty.New().SetTimeout(500 * time.Millisecond),
		cache:  lru.NewLRU[domain.Target, float64](256, nil, metricsTTL),
	}
}

func (r *ResourceBased) Name() string { return string(domain.StrategyResourceBased) }

func (r *ResourceBased) Select(ctx context.Context, in ports.SelectionInput) (domain.Target, bool) {
	targets := healthyTargets(in)
	if len(targets) == 0 {
		return "", false
	}

	var (
		mu    sync.Mutex
		best  domain.Target
		found bool
		low   float64
	)

	var wg sync.WaitGroup
	for _, t := range targets {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			score, ok := r.loadFor(ctx, t, in.MetricsURLs[t])
			if !ok {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if !found || score < low {
				best, low, found = t, score, true
			}
		}()
	}
	wg.Wait()

	return best, found
}

// loadFor returns t's cached or freshly probed score - cpu_usage_percent
// plus memory_usage_percent - and false if the probe could not be
// fetched or parsed, so an unreachable target never wins a selection
// against a responsive one by sentinel value.
func (r *ResourceBased) loadFor(ctx context.Context, t domain.Target, url string) (float64, bool) {
	if score, ok := r.cache.Get(t); ok {
		return score, true
	}
	if url == "" {
		return 0, false
	}

	v, err, _ := r.group.Do(string(t), func() (interface{}, error) {
		resp, err := r.client.R().SetContext(ctx).Get(url)
		if err != nil || !resp.IsSuccess() {
			return 0.0, domain.ErrMetricsFetch
		}
		var m resourceMetrics
		if err := json.Unmarshal(resp.Body(), &m); err != nil {
			return 0.0, domain.ErrMetricsFetch
		}
		score := float64(m.CPUUsagePercent) + float64(m.MemoryUsagePercent)
		r.cache.Add(t, score)
		return score, nil
	})
	if err != nil {
		return 0, false
	}
	return v.(float64), true
}

var _ ports.TargetSelector = (*ResourceBased)(nil)
