package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dittrime/stride/internal/apperr"
	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/tokenstore"
	"golang.org/x/oauth2"
)

var testTTL = config.TTL{
	ActivityList:   5 * time.Minute,
	ActivityDetail: 30 * time.Minute,
	Stats:          5 * time.Minute,
}

func staticSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

type fakeRefresher struct {
	calls atomic.Int64
	err   error
}

func (f *fakeRefresher) ForceRefresh(context.Context) (tokenstore.Credential, error) {
	f.calls.Add(1)
	if f.err != nil {
		return tokenstore.Credential{}, f.err
	}
	return tokenstore.Credential{AccessToken: "refreshed"}, nil
}

const activityListBody = `[{"id":1,"type":"Run","name":"Morning Run","start_date":"2024-03-01T07:00:00Z","start_date_local":"2024-03-01T08:00:00Z","distance":5000,"moving_time":1500,"elapsed_time":1600,"total_elevation_gain":50}]`

func writeActivities(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", "100,1000")
	w.Header().Set("X-RateLimit-Usage", "1,1")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, activityListBody)
}

func TestListServedFromCacheWithoutNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeActivities(w)
	}))
	t.Cleanup(srv.Close)

	store := cache.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithCache(store, testTTL),
	)

	ctx := context.Background()
	first, err := client.Activities.List(ctx, &ListParams{Page: 1, PerPage: 200})
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := client.Activities.List(ctx, &ListParams{Page: 1, PerPage: 200})
	if err != nil {
		t.Fatalf("second list: %v", err)
	}

	if n := hits.Load(); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Errorf("cached response differs: %+v vs %+v", first, second)
	}
}

func TestUnauthorizedTriggersOneRefreshAndRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Authorization Error"}`)
			return
		}
		writeActivities(w)
	}))
	t.Cleanup(srv.Close)

	refresher := &fakeRefresher{}
	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithRefresher(refresher),
	)

	activities, err := client.Activities.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected one activity, got %d", len(activities))
	}
	if n := refresher.calls.Load(); n != 1 {
		t.Errorf("expected one forced refresh, got %d", n)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected two upstream calls, got %d", n)
	}
}

func TestUnauthorizedTwiceIsNotRetriedAgain(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Authorization Error"}`)
	}))
	t.Cleanup(srv.Close)

	refresher := &fakeRefresher{}
	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithRefresher(refresher),
	)

	_, err := client.Activities.List(context.Background(), nil)
	appErr := apperr.AsError(err)
	if appErr == nil || appErr.Code != apperr.CodeAuthorizationDenied {
		t.Fatalf("expected authorization_denied, got %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected exactly two upstream calls, got %d", n)
	}
	if n := refresher.calls.Load(); n != 1 {
		t.Errorf("expected exactly one refresh attempt, got %d", n)
	}
}

func TestRateLimitedNeverRetriedAndNotCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "120")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.Header().Set("X-RateLimit-Usage", "100,450")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"Rate Limit Exceeded"}`)
	}))
	t.Cleanup(srv.Close)

	store := cache.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithCache(store, testTTL),
	)

	ctx := context.Background()
	_, err := client.Activities.List(ctx, nil)
	rlErr := apperr.AsRateLimitError(err)
	if rlErr == nil {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rlErr.RetryAfter != 120*time.Second {
		t.Errorf("retry after = %v, want 120s", rlErr.RetryAfter)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("429 must not be retried, got %d calls", n)
	}
	if keys := store.Keys("strava:"); len(keys) != 0 {
		t.Errorf("429 must not touch the cache, found %v", keys)
	}

	// a second call goes upstream again: nothing was cached
	_, _ = client.Activities.List(ctx, nil)
	if n := hits.Load(); n != 2 {
		t.Errorf("expected a fresh upstream call, got %d total", n)
	}
}

func TestServerErrorRetriedOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeActivities(w)
	}))
	t.Cleanup(srv.Close)

	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithRetryWait(time.Millisecond),
	)

	activities, err := client.Activities.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected one activity, got %d", len(activities))
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected two upstream calls, got %d", n)
	}
}

func TestPersistentServerErrorSurfacesAfterOneRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := New(staticSource("tok"),
		WithBaseURL(srv.URL),
		WithRetryWait(time.Millisecond),
	)

	_, err := client.Activities.List(context.Background(), nil)
	appErr := apperr.AsError(err)
	if appErr == nil || appErr.Code != apperr.CodeUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("expected exactly two upstream calls, got %d", n)
	}
}

func TestNotFoundSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Record Not Found","errors":[{"resource":"Activity","code":"not found"}]}`)
	}))
	t.Cleanup(srv.Close)

	client := New(staticSource("tok"), WithBaseURL(srv.URL))

	_, err := client.Activities.Get(context.Background(), 999)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
}

func TestBearerTokenAttached(t *testing.T) {
	t.Parallel()

	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeActivities(w)
	}))
	t.Cleanup(srv.Close)

	client := New(staticSource("secret-token"), WithBaseURL(srv.URL))

	if _, err := client.Activities.List(context.Background(), nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := auth.Load(); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestBudgetObservedFromResponses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		w.Header().Set("X-RateLimit-Usage", "63,700")
		writeActivities(w)
	}))
	t.Cleanup(srv.Close)

	client := New(staticSource("tok"), WithBaseURL(srv.URL))

	if _, err := client.Activities.List(context.Background(), nil); err != nil {
		t.Fatalf("list: %v", err)
	}

	usage, _, ok := client.Budget().Snapshot()
	if !ok {
		t.Fatal("expected a budget observation")
	}
	if usage.ShortTermUsage != 63 || usage.DailyUsage != 700 {
		t.Errorf("unexpected usage %+v", usage)
	}
}
