// Package arxiv provides a RemoteCorpus adapter for the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.RemoteCorpus = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://export.arxiv.org/api/query"
	DefaultTimeout = 60 * time.Second

	// DefaultRequestsPerSecond follows the arXiv guideline of one request every three seconds.
	DefaultRequestsPerSecond = 1.0 / 3.0

	// MaxResultsPerRequest is the largest page arXiv serves in one response.
	MaxResultsPerRequest = 2000
)

// submittedDateLayout is the timestamp format of submittedDate ranges.
const submittedDateLayout = "200601021504"

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the query endpoint (default: https://export.arxiv.org/api/query).
	BaseURL string

	// RequestsPerSecond throttles requests (default: one every three seconds).
	RequestsPerSecond float64

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration

	// HTTPClient overrides the HTTP client.
	HTTPClient *http.Client

	// Logger receives structured request logs (default: logger.Zap()).
	Logger *zap.Logger
}

// Client fetches paper metadata pages from arXiv.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an arXiv client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Zap()
	}

	return &Client{
		http:    cfg.HTTPClient,
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  cfg.Logger.Named("arxiv"),
	}
}

// Count returns the number of papers matching the filter.
func (c *Client) Count(ctx context.Context, filter domain.CorpusFilter) (int, error) {
	page, err := c.query(ctx, filter, 0, 0)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// FetchPage returns up to limit papers starting at offset, newest first.
func (c *Client) FetchPage(ctx context.Context, filter domain.CorpusFilter, offset, limit int) (driven.Page, error) {
	if offset < 0 || limit <= 0 {
		return driven.Page{}, fmt.Errorf("%w: offset %d limit %d", domain.ErrInvalidInput, offset, limit)
	}
	return c.query(ctx, filter, offset, min(limit, MaxResultsPerRequest))
}

func (c *Client) query(ctx context.Context, filter domain.CorpusFilter, offset, limit int) (driven.Page, error) {
	if err := filter.Validate(); err != nil {
		return driven.Page{}, err
	}

	params := url.Values{}
	params.Set("search_query", SearchQuery(filter))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("start", strconv.Itoa(offset))
	params.Set("max_results", strconv.Itoa(limit))
	reqURL := c.baseURL + "?" + params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return driven.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return driven.Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/atom+xml")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return driven.Page{}, fmt.Errorf("arxiv: send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return driven.Page{}, fmt.Errorf("arxiv: status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return driven.Page{}, fmt.Errorf("arxiv: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return driven.Page{}, fmt.Errorf("arxiv: decode feed: %w: %w", domain.ErrMalformedResponse, err)
	}

	papers := make([]domain.Paper, 0, len(f.Entries))
	for i := range f.Entries {
		paper, ok := f.Entries[i].toPaper()
		if !ok {
			c.logger.Warn("skipping entry without identifier", zap.Int("offset", offset+i))
			continue
		}
		papers = append(papers, paper)
	}

	c.logger.Debug("fetched page",
		zap.String("filter", filter.Key()),
		zap.Int("offset", offset),
		zap.Int("limit", limit),
		zap.Int("received", len(papers)),
		zap.Int("total", f.TotalResults),
		zap.Duration("latency", time.Since(start)),
	)

	return driven.Page{Papers: papers, Total: f.TotalResults}, nil
}

// SearchQuery builds the arXiv search_query expression for a filter.
func SearchQuery(filter domain.CorpusFilter) string {
	n := filter.Normalized()

	terms := make([]string, len(n.Categories))
	for i, cat := range n.Categories {
		terms[i] = "cat:" + cat
	}
	query := strings.Join(terms, " OR ")
	if len(terms) > 1 {
		query = "(" + query + ")"
	}

	if n.From.IsZero() && n.To.IsZero() {
		return query
	}

	from := "*"
	if !n.From.IsZero() {
		from = n.From.UTC().Format(submittedDateLayout)
	}
	to := "*"
	if !n.To.IsZero() {
		// The upper bound is inclusive of the whole day.
		to = n.To.UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Minute).Format(submittedDateLayout)
	}
	return fmt.Sprintf("%s AND submittedDate:[%s TO %s]", query, from, to)
}
