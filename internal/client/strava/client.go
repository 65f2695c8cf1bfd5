// Package strava wraps the Strava v3 API behind a TTL cache. Every call
// goes key → cache → (valid token → GET → store) so that repeated
// dashboard loads cost zero upstream budget until an entry expires.
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dittrime/stride/internal/apperr"
	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/oauth"
	"github.com/dittrime/stride/internal/tokenstore"
	"github.com/dittrime/stride/internal/xhttp"
	"github.com/dittrime/stride/internal/xslog"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://www.strava.com/api/v3"

// TokenRefresher forces a new credential after the provider rejected the
// current access token out-of-band.
type TokenRefresher interface {
	ForceRefresh(ctx context.Context) (tokenstore.Credential, error)
}

type Client struct {
	Activities ActivityService
	Athlete    AthleteService

	baseURL    string
	httpClient *http.Client
	cache      cache.Store
	ttl        config.TTL
	budget     *Budget
	refresher  TokenRefresher
	athleteID  func() int64
	retryWait  time.Duration
	logger     *slog.Logger
}

func New(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:     defaultBaseURL,
		tokenSource: tokenSource,
		timeout:     15 * time.Second,
		retryWait:   time.Second,
		athleteID:   func() int64 { return 0 },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := xhttp.NewHTTPClient(xhttp.WithTimeout(cfg.timeout))
	httpClient.Transport = &bearerTransport{
		base:        httpClient.Transport,
		tokenSource: cfg.tokenSource,
	}

	c := &Client{
		baseURL:    cfg.baseURL,
		httpClient: httpClient,
		cache:      cfg.cache,
		ttl:        cfg.ttl,
		budget:     NewBudget(),
		refresher:  cfg.refresher,
		athleteID:  cfg.athleteID,
		retryWait:  cfg.retryWait,
		logger:     cfg.logger,
	}

	c.Activities = &activityService{client: c}
	c.Athlete = &athleteService{client: c}

	return c
}

type clientConfig struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	cache       cache.Store
	ttl         config.TTL
	refresher   TokenRefresher
	athleteID   func() int64
	timeout     time.Duration
	retryWait   time.Duration
	logger      *slog.Logger
}

type Option func(*clientConfig)

func WithBaseURL(baseURL string) Option {
	return func(cfg *clientConfig) { cfg.baseURL = baseURL }
}

func WithCache(store cache.Store, ttl config.TTL) Option {
	return func(cfg *clientConfig) {
		cfg.cache = store
		cfg.ttl = ttl
	}
}

func WithRefresher(r TokenRefresher) Option {
	return func(cfg *clientConfig) { cfg.refresher = r }
}

// WithAthleteID scopes cache keys to the authenticated athlete.
func WithAthleteID(f func() int64) Option {
	return func(cfg *clientConfig) { cfg.athleteID = f }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

func WithRetryWait(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.retryWait = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

// Budget exposes the advisory rate-limit usage observed on upstream
// responses.
func (c *Client) Budget() *Budget {
	return c.budget
}

// InvalidateAll drops every cached payload; the next call for each key
// goes back upstream.
func (c *Client) InvalidateAll(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.InvalidateAll(ctx)
}

// get serves the request from the cache when it can, otherwise fetches
// upstream and stores the payload under the caller's TTL. Cache-layer
// failures degrade to a direct upstream call.
func (c *Client) get(ctx context.Context, path string, query url.Values, ttl time.Duration, result any) error {
	key := cache.Key(c.athleteID(), path, query)

	if c.cache != nil && ttl > 0 {
		data, err := c.cache.Get(ctx, key)
		if err == nil {
			return decode(data, result)
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.WarnContext(ctx, "cache read failed, falling through to upstream",
				xslog.CacheKey(key), xslog.Error(err))
		}
	}

	body, err := c.fetch(ctx, path, query)
	if err != nil {
		return err
	}

	if c.cache != nil && ttl > 0 {
		if err := c.cache.Set(ctx, key, body, ttl); err != nil {
			c.logger.WarnContext(ctx, "cache write failed",
				xslog.CacheKey(key), xslog.Error(err))
		}
	}

	return decode(body, result)
}

// fetch is a bounded retry state machine: at most one forced token
// refresh per logical call (upstream 401) and at most one backoff retry
// (timeout or 5xx). 429 is never retried.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var (
		refreshed bool
		retried   bool
	)

	for {
		body, status, headers, err := c.roundTrip(ctx, u)
		if err != nil {
			if mapped := mapTokenError(err); mapped != nil {
				return nil, mapped
			}
			if !retried && isRetryable(err) {
				retried = true
				c.logger.DebugContext(ctx, "retrying upstream call", xslog.Error(err))
				if werr := wait(ctx, c.retryWait); werr != nil {
					return nil, classifyTransportError(err)
				}
				continue
			}
			return nil, classifyTransportError(err)
		}

		c.budget.Observe(headers)

		switch {
		case status == http.StatusUnauthorized:
			if !refreshed && c.refresher != nil {
				refreshed = true
				if _, rerr := c.refresher.ForceRefresh(ctx); rerr != nil {
					return nil, mapRefreshError(rerr)
				}
				continue
			}
			return nil, apperr.AuthorizationDenied("authentication failed, please reconnect your Strava account", nil)

		case status == http.StatusTooManyRequests:
			return nil, apperr.RateLimited(parseRetryAfter(headers), nil)

		case status >= http.StatusInternalServerError:
			if !retried {
				retried = true
				if werr := wait(ctx, c.retryWait); werr != nil {
					return nil, apperr.UpstreamUnavailable(fmt.Errorf("status %d", status))
				}
				continue
			}
			return nil, apperr.UpstreamUnavailable(fmt.Errorf("status %d", status))

		case status >= http.StatusBadRequest:
			return nil, parseAPIError(status, body)

		default:
			return body, nil
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, u string) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return body, resp.StatusCode, resp.Header, nil
}

func decode(data []byte, result any) error {
	if result == nil {
		return nil
	}
	if err := go_json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return apperr.UpstreamTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.UpstreamTimeout(err)
	}
	return apperr.UpstreamUnavailable(err)
}

// mapTokenError translates token-source failures surfaced through the
// transport into the error taxonomy. Returns nil for non-token errors.
func mapTokenError(err error) error {
	if errors.Is(err, tokenstore.ErrNoCredential) {
		return apperr.AuthRequired()
	}
	if errors.Is(err, oauth.ErrReauthRequired) {
		return apperr.RefreshFailed(err)
	}
	if errors.Is(err, tokenstore.ErrStorageUnavailable) {
		return apperr.StorageUnavailable(err)
	}
	return nil
}

func mapRefreshError(err error) error {
	if mapped := mapTokenError(err); mapped != nil {
		return mapped
	}
	return apperr.RefreshFailed(err)
}

type bearerTransport struct {
	base        http.RoundTripper
	tokenSource oauth2.TokenSource
}

var _ http.RoundTripper = (*bearerTransport)(nil)

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	return t.base.RoundTrip(req)
}
