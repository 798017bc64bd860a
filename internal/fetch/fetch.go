// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fetch is the pipeline's outbound HTTP client: a browser
// user agent, bounded retries on transient failures, and an optional
// page cache so catalog dumps and posters are not re-downloaded on
// every worker cycle.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/mozhaa/hanyuu/pkg/memocache"
)

// UserAgent mirrors a desktop Chrome so poster hosts and catalog mirrors
// serve us the same bytes they serve browsers.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/102.0.0.0 Safari/537.36"

// ErrNotFound reports a definitive upstream miss (404 or 410). Callers can
// cache it as absence rather than retrying.
var ErrNotFound = errors.New("fetch: not found")

const (
	defaultTimeout  = 2 * time.Minute
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
)

type Client struct {
	httpClient *http.Client
	cache      *memocache.Cache
	attempts   uint
	delay      time.Duration
	group      singleflight.Group
}

type Option func(*Client)

// WithCache memoizes GetCached responses (including recorded absence)
// through the given page cache.
func WithCache(cache *memocache.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithTimeout bounds each individual request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithAttempts overrides how many times a transient failure is retried.
func WithAttempts(n uint) Option {
	return func(c *Client) { c.attempts = n }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		attempts:   defaultAttempts,
		delay:      defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get downloads url, retrying network errors and retryable statuses with
// backoff. A 404 or 410 returns ErrNotFound without retrying.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			var err error
			body, err = c.getOnce(ctx, url)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetCached is Get behind the page cache: a previous body (or recorded
// absence) short-circuits the request, concurrent fetches of the same url
// collapse into one. Without a cache it degrades to plain Get.
func (c *Client) GetCached(ctx context.Context, url string) ([]byte, error) {
	if c.cache == nil {
		return c.Get(ctx, url)
	}

	fetch := c.cache.Memoize(func(ctx context.Context, key string) ([]byte, error) {
		body, err := c.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		// Memoize treats a nil slice as absence, so keep empty bodies distinct.
		if body == nil {
			body = []byte{}
		}
		return body, nil
	})

	v, err, _ := c.group.Do(url, func() (any, error) {
		return fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	body, _ := v.([]byte)
	if body == nil {
		return nil, ErrNotFound
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, errors.Wrapf(ErrNotFound, "GET %s", url)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, &transientError{err: errors.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transientError{err: errors.Wrapf(err, "read body of %s", url)}
	}
	return body, nil
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
