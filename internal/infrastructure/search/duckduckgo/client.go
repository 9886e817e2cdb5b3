package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent-compare/internal/application/port/output"
	"agent-compare/internal/domain/entity"

	"golang.org/x/time/rate"
)

var _ output.SearchPort = (*Client)(nil)

const (
	DefaultEndpoint  = "https://lite.duckduckgo.com/lite/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// sharedLimiter keeps every client in the process at one query per second.
var sharedLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

var (
	ErrEmptyQuery = errors.New("search query is empty")
	ErrThrottled  = errors.New("duckduckgo: rate limited")
)

type Config struct {
	Endpoint   string
	UserAgent  string
	HTTPClient *http.Client
	// Limiter defaults to the process-wide limiter.
	Limiter *rate.Limiter
	// MaxRetries bounds how many times a 429 is retried.
	MaxRetries int
	// Backoff is the first wait after a 429; it doubles on each retry.
	Backoff time.Duration
	Logger  output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Endpoint:   DefaultEndpoint,
		UserAgent:  DefaultUserAgent,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Limiter:    sharedLimiter,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// Client scrapes the DuckDuckGo lite HTML page.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = def.HTTPClient
	}
	if cfg.Limiter == nil {
		cfg.Limiter = def.Limiter
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &Client{cfg: cfg}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]entity.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	results, err := parseResults(body, limit)
	if err != nil {
		return nil, err
	}
	c.debug("search completed", "results", len(results))
	return results, nil
}

func (c *Client) fetch(ctx context.Context, query string) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("q", query)
	encoded := form.Encode()

	delay := c.cfg.Backoff
	for attempt := 0; ; attempt++ {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("duckduckgo request: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			if attempt >= c.cfg.MaxRetries {
				return nil, ErrThrottled
			}
			c.debug("throttled, backing off", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
		}
	}
}

func (c *Client) debug(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}
