// Package ratingsfeed pulls per-platform ratings for a listing from the upstream
// aggregation feed.
package ratingsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/Clark-Hu/venue-directory/internal/metrics"
	"github.com/Clark-Hu/venue-directory/internal/reputation"
)

var (
	// ErrNotFound is returned when the feed has no entry for the requested listing.
	ErrNotFound = errors.New("ratingsfeed: not found")
	// ErrUnavailable is returned when the feed cannot be reached or keeps failing.
	ErrUnavailable = errors.New("ratingsfeed: unavailable")
)

// Snapshot is the feed's current view of a listing.
type Snapshot struct {
	Slug      string
	Signals   reputation.Signals
	FetchedAt time.Time
}

// Client defines the contract for querying the ratings feed.
type Client interface {
	Fetch(ctx context.Context, slug string) (*Snapshot, error)
}

// Options tunes the retry and breaker behaviour of HTTPClient.
type Options struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxFailures     uint32
	OpenTimeout     time.Duration
}

// DefaultOptions returns the settings used by the server.
func DefaultOptions() Options {
	return Options{
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxFailures:     5,
		OpenTimeout:     30 * time.Second,
	}
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	opts    Options
	logger  *log.Logger
}

// NewHTTPClient constructs an HTTP-backed feed client.
func NewHTTPClient(baseURL, apiKey string, opts Options, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ratings feed url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse ratings feed url: %q is not absolute", baseURL)
	}
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = defaults.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = defaults.MaxInterval
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaults.MaxFailures
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaults.OpenTimeout
	}

	c := &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   opts.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		opts:   opts,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratingsfeed",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Printf("ratingsfeed: breaker %s %s -> %s", name, from, to)
			metrics.SetFeedCircuitOpen(to == gobreaker.StateOpen)
		},
	})
	return c, nil
}

// Fetch retrieves the current platform ratings for a listing slug.
func (c *HTTPClient) Fetch(ctx context.Context, slug string) (*Snapshot, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, slug)
	})
	switch {
	case err == nil:
		metrics.RecordFeedRequest("ok")
		return out.(*Snapshot), nil
	case errors.Is(err, ErrNotFound):
		metrics.RecordFeedRequest("not_found")
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordFeedRequest("circuit_open")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		metrics.RecordFeedRequest("error")
		return nil, err
	}
}

func (c *HTTPClient) fetchWithRetry(ctx context.Context, slug string) (*Snapshot, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.opts.InitialInterval
	expBackoff.MaxInterval = c.opts.MaxInterval
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.opts.MaxRetries)), ctx)

	var snap *Snapshot
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		snap, err = c.fetchOnce(ctx, slug)
		if err != nil && attempt > 1 {
			c.logger.Printf("ratingsfeed: attempt %d for %q failed: %v", attempt, slug, err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// fetchOnce performs a single request. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *HTTPClient) fetchOnce(ctx context.Context, slug string) (*Snapshot, error) {
	rel := &url.URL{Path: c.baseURL.Path + "/ratings"}
	q := rel.Query()
	q.Set("slug", slug)
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode ratings feed response: %w", err))
		}
		return convertToSnapshot(slug, payload), nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrNotFound)
	case retryableStatus(resp.StatusCode):
		return nil, fmt.Errorf("%w: upstream returned %d", ErrUnavailable, resp.StatusCode)
	default:
		c.logger.Printf("ratingsfeed: unexpected status %d for slug %q", resp.StatusCode, slug)
		return nil, backoff.Permanent(fmt.Errorf("ratingsfeed: upstream returned %d", resp.StatusCode))
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type apiResponse struct {
	Slug      string            `json:"slug"`
	Platforms []platformPayload `json:"platforms"`
	FetchedAt *time.Time        `json:"fetchedAt"`
}

type platformPayload struct {
	Source      string   `json:"source"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int64   `json:"reviewCount"`
}

// convertToSnapshot keeps the last entry per source and drops entries without a
// source id. Value validation is left to the aggregator.
func convertToSnapshot(slug string, payload apiResponse) *Snapshot {
	fetchedAt := time.Now().UTC()
	if payload.FetchedAt != nil {
		fetchedAt = payload.FetchedAt.UTC()
	}
	if payload.Slug != "" {
		slug = payload.Slug
	}

	signals := make(reputation.Signals, len(payload.Platforms))
	for _, p := range payload.Platforms {
		id := strings.ToLower(strings.TrimSpace(p.Source))
		if id == "" {
			continue
		}
		signals[reputation.SourceID(id)] = reputation.Signal{Rating: p.Rating, ReviewCount: p.ReviewCount}
	}

	return &Snapshot{Slug: slug, Signals: signals, FetchedAt: fetchedAt}
}
