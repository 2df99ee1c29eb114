package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/config"
	"github.com/sells-group/hdb-fairness/internal/fetcher"
	"github.com/sells-group/hdb-fairness/internal/resale"
	"github.com/sells-group/hdb-fairness/internal/resilience"
)

// newSource returns a file-backed source when poolPath is set and a
// data.gov.sg client otherwise.
func newSource(ctx context.Context, c *config.Config, poolPath string) (resale.Source, error) {
	if poolPath != "" {
		return resale.NewFileSource(ctx, poolPath)
	}
	return newClient(c), nil
}

func newClient(c *config.Config) *resale.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Source.UserAgent,
		Timeout:    time.Duration(c.Source.TimeoutSecs) * time.Second,
		MaxRetries: c.Source.MaxRetries,
	})
	opts := resale.ClientOptions{
		BaseURL:     c.Source.BaseURL,
		ResourceID:  c.Source.ResourceID,
		PageSize:    c.Source.PageSize,
		MaxRecords:  c.Source.MaxRecords,
		Concurrency: c.Source.Concurrency,
	}
	if c.Source.BreakerThreshold > 0 {
		opts.Breaker = resilience.NewBreaker(resilience.BreakerOptions{
			Threshold: c.Source.BreakerThreshold,
			Cooldown:  time.Duration(c.Source.BreakerCooldownSecs) * time.Second,
			OnStateChange: func(from, to resilience.State) {
				zap.L().Warn("resale: upstream circuit changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return resale.NewClient(f, opts)
}
