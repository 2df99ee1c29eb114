package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// defaultHostRate applies to hosts without a configured rate.
const defaultHostRate rate.Limit = 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the delay before the first retry; it doubles per attempt
	// up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// HostRates sets the initial requests per second for specific hosts.
	// Those hosts get an AdaptiveLimiter.
	HostRates map[string]rate.Limit
}

// AdaptiveLimiter wraps a rate.Limiter that speeds up by 20% on success (up
// to 2x the initial rate) and halves on 429 (down to a quarter).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(min(a.currentRate*1.2, a.maxRate))
}

// OnRateLimit lowers the rate after a 429.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(max(a.currentRate*0.5, a.minRate))
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

func (a *AdaptiveLimiter) setLocked(r rate.Limit) {
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// DefaultHostRates returns the initial rates for known upstream hosts.
func DefaultHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"data.gov.sg":     5,
		"api.data.gov.sg": 5,
	}
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host rate
// limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	adaptive map[string]*AdaptiveLimiter

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "hdb-fairness/1.0"
	}
	if opts.HostRates == nil {
		opts.HostRates = DefaultHostRates()
	}

	adaptive := make(map[string]*AdaptiveLimiter, len(opts.HostRates))
	for host, r := range opts.HostRates {
		adaptive[host] = NewAdaptiveLimiter(r, max(1, int(r)))
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		adaptive: adaptive,
		fallback: make(map[string]*rate.Limiter),
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}

func (f *HTTPFetcher) wait(ctx context.Context, host string) error {
	if a, ok := f.adaptive[host]; ok {
		return a.Wait(ctx)
	}

	f.mu.Lock()
	lim, ok := f.fallback[host]
	if !ok {
		lim = rate.NewLimiter(defaultHostRate, int(defaultHostRate))
		f.fallback[host] = lim
	}
	f.mu.Unlock()

	return lim.Wait(ctx)
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	adaptive := f.adaptive[host]

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if !f.backoff(ctx, attempt-1) {
				break
			}
		}
		if err := f.wait(ctx, host); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("fetcher: request failed, retrying",
				zap.String("url", redact(req.URL)),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", redact(req.URL))
			if adaptive != nil {
				adaptive.OnRateLimit()
			}
			zap.L().Warn("fetcher: rate limited, backing off",
				zap.String("url", redact(req.URL)),
				zap.Int("attempt", attempt+1),
			)
			continue
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, redact(req.URL))
			zap.L().Warn("fetcher: server error, retrying",
				zap.String("url", redact(req.URL)),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// backoff sleeps before retry attempt+1. It reports false if ctx ended first.
func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) bool {
	d := time.Duration(float64(f.opts.BaseBackoff) * math.Pow(2, float64(attempt)))
	if d > f.opts.MaxBackoff {
		d = f.opts.MaxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// redact drops the query string, which can be long for filtered searches.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
