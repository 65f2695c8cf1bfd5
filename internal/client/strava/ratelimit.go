package strava

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Usage is the advisory rate budget parsed from upstream response
// headers. Strava reports both windows in one comma-separated pair:
// 15-minute first, daily second. Limits default to 100/15min and
// 1000/day. Observed, never enforced locally: the cache is the primary
// defense against exceeding the budget.
type Usage struct {
	ShortTermUsage int `json:"short_term_usage"`
	ShortTermLimit int `json:"short_term_limit"`
	DailyUsage     int `json:"daily_usage"`
	DailyLimit     int `json:"daily_limit"`
}

const (
	// Header keys use canonical form (http.CanonicalHeaderKey)
	limitHeaderKey = "X-Ratelimit-Limit"
	usageHeaderKey = "X-Ratelimit-Usage"
)

// ParseRateLimitHeaders returns nil with no error when the headers are
// absent (e.g. on some error responses).
func ParseRateLimitHeaders(headers http.Header) (*Usage, error) {
	var (
		limitStr = headers.Get(limitHeaderKey)
		usageStr = headers.Get(usageHeaderKey)
	)

	if limitStr == "" || usageStr == "" {
		return nil, nil
	}

	shortLimit, dailyLimit, err := parseWindowPair(limitStr)
	if err != nil {
		return nil, err
	}

	shortUsage, dailyUsage, err := parseWindowPair(usageStr)
	if err != nil {
		return nil, err
	}

	return &Usage{
		ShortTermUsage: shortUsage,
		ShortTermLimit: shortLimit,
		DailyUsage:     dailyUsage,
		DailyLimit:     dailyLimit,
	}, nil
}

// parseWindowPair splits "100,1000" into the 15-minute and daily values.
func parseWindowPair(s string) (int, int, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, strconv.ErrSyntax
	}

	short, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}

	daily, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}

	return short, daily, nil
}

func parseRetryAfter(headers http.Header) time.Duration {
	const defaultRetryAfter = 60 * time.Second

	s := headers.Get("Retry-After")
	if s == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// Budget tracks the latest observed usage for logging and the limits
// endpoint.
type Budget struct {
	mu        sync.Mutex
	last      *Usage
	updatedAt time.Time
}

func NewBudget() *Budget {
	return &Budget{}
}

func (b *Budget) Observe(headers http.Header) {
	usage, err := ParseRateLimitHeaders(headers)
	if err != nil || usage == nil {
		return
	}

	b.mu.Lock()
	b.last = usage
	b.updatedAt = time.Now()
	b.mu.Unlock()
}

// Snapshot returns the most recently observed usage, or ok=false when no
// upstream call has reported one yet.
func (b *Budget) Snapshot() (Usage, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last == nil {
		return Usage{}, time.Time{}, false
	}
	return *b.last, b.updatedAt, true
}
