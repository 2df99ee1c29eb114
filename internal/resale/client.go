package resale

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/hdb-fairness/internal/fairness"
	"github.com/sells-group/hdb-fairness/internal/fetcher"
	"github.com/sells-group/hdb-fairness/internal/resilience"
)

// ClientOptions configures a datastore Client.
type ClientOptions struct {
	BaseURL    string // e.g. https://data.gov.sg
	ResourceID string // datastore resource of the resale dataset
	PageSize   int
	// MaxRecords caps the records returned per query; 0 means no cap.
	MaxRecords  int
	Concurrency int
	// Breaker, when set, guards every page request.
	Breaker *resilience.Breaker
}

// Client reads resale transactions from the data.gov.sg datastore_search API.
type Client struct {
	fetcher fetcher.Fetcher
	opts    ClientOptions
}

// NewClient creates a Client. Zero options fall back to sensible values.
func NewClient(f fetcher.Fetcher, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://data.gov.sg"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Client{fetcher: f, opts: opts}
}

type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []fairness.RawRecord `json:"records"`
		Total   json.Number          `json:"total"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Records fetches every transaction for town and flatType, up to MaxRecords.
// The first page reveals the total; the rest are fetched concurrently and
// returned in upstream order.
func (c *Client) Records(ctx context.Context, town, flatType string) ([]fairness.RawRecord, error) {
	log := zap.L().With(
		zap.String("town", town),
		zap.String("flat_type", flatType),
	)

	limit := c.opts.PageSize
	if c.opts.MaxRecords > 0 && c.opts.MaxRecords < limit {
		limit = c.opts.MaxRecords
	}

	first, total, err := c.page(ctx, town, flatType, 0, limit)
	if err != nil {
		return nil, err
	}

	want := total
	if c.opts.MaxRecords > 0 && want > c.opts.MaxRecords {
		want = c.opts.MaxRecords
	}
	if len(first) >= want || len(first) == 0 {
		log.Debug("resale: fetched records", zap.Int("records", len(first)), zap.Int("total", total))
		return truncate(first, want), nil
	}

	var offsets []int
	for off := len(first); off < want; off += c.opts.PageSize {
		offsets = append(offsets, off)
	}
	pages := make([][]fairness.RawRecord, len(offsets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, off := range offsets {
		g.Go(func() error {
			recs, _, err := c.page(gctx, town, flatType, off, min(c.opts.PageSize, want-off))
			if err != nil {
				return err
			}
			pages[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := first
	for _, p := range pages {
		out = append(out, p...)
	}
	log.Debug("resale: fetched records",
		zap.Int("records", len(out)),
		zap.Int("total", total),
		zap.Int("pages", len(offsets)+1),
	)
	return truncate(out, want), nil
}

func (c *Client) page(ctx context.Context, town, flatType string, offset, limit int) ([]fairness.RawRecord, int, error) {
	u, err := c.searchURL(town, flatType, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	fetch := func(ctx context.Context) (searchResponse, error) {
		body, err := c.fetcher.Download(ctx, u)
		if err != nil {
			return searchResponse{}, eris.Wrapf(err, "resale: fetch page at offset %d", offset)
		}
		defer body.Close() //nolint:errcheck

		resp, err := fetcher.DecodeJSONObject[searchResponse](body)
		if err != nil {
			return searchResponse{}, eris.Wrapf(err, "resale: decode page at offset %d", offset)
		}
		return *resp, nil
	}

	var resp searchResponse
	if c.opts.Breaker != nil {
		resp, err = resilience.DoVal(ctx, c.opts.Breaker, fetch)
	} else {
		resp, err = fetch(ctx)
	}
	if err != nil {
		return nil, 0, err
	}
	if !resp.Success {
		msg := "unknown error"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return nil, 0, eris.Errorf("resale: datastore search failed: %s", msg)
	}

	total, err := strconv.Atoi(resp.Result.Total.String())
	if err != nil {
		total = len(resp.Result.Records)
	}
	return resp.Result.Records, total, nil
}

func (c *Client) searchURL(town, flatType string, offset, limit int) (string, error) {
	filters := map[string]string{}
	if t := strings.TrimSpace(town); t != "" {
		filters["town"] = strings.ToUpper(t)
	}
	if ft := strings.TrimSpace(flatType); ft != "" {
		filters["flat_type"] = strings.ToUpper(ft)
	}

	q := url.Values{}
	q.Set("resource_id", c.opts.ResourceID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("sort", "month desc")
	if len(filters) > 0 {
		raw, err := json.Marshal(filters)
		if err != nil {
			return "", eris.Wrap(err, "resale: encode filters")
		}
		q.Set("filters", string(raw))
	}
	return c.opts.BaseURL + "/api/action/datastore_search?" + q.Encode(), nil
}

func truncate(recs []fairness.RawRecord, n int) []fairness.RawRecord {
	if n >= 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
