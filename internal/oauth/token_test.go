package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dittrime/stride/internal/tokenstore"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu   sync.Mutex
	cred tokenstore.Credential
	has  bool

	saves int
}

func (m *memStore) Load(context.Context) (tokenstore.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		return tokenstore.Credential{}, tokenstore.ErrNoCredential
	}
	return m.cred, nil
}

func (m *memStore) Save(_ context.Context, cred tokenstore.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
	m.has = true
	m.saves++
	return nil
}

// newTokenEndpoint serves refresh-token grants, handing out a distinct
// access token per call.
func newTokenEndpoint(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"access_token": "access-%d",
			"refresh_token": "refresh-%d",
			"token_type": "Bearer",
			"expires_in": 21600,
			"athlete": {"id": 42}
		}`, n, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   tokenURL + "/authorize",
			TokenURL:  tokenURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestCredentialFreshSkipsRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken:  "stored",
			RefreshToken: "stored-refresh",
			Expiry:       time.Now().Add(time.Hour),
			AthleteID:    42,
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	cred, err := source.Credential(context.Background())
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	if cred.AccessToken != "stored" {
		t.Errorf("got %q, want stored token", cred.AccessToken)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("fresh credential should not hit the token endpoint, got %d calls", n)
	}
}

func TestCredentialRefreshesWithinExpiryMargin(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	// expires in 30s: inside the 60s margin, logically expired
	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken:  "stale",
			RefreshToken: "stored-refresh",
			Expiry:       time.Now().Add(30 * time.Second),
			AthleteID:    42,
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	cred, err := source.Credential(context.Background())
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	if cred.AccessToken != "access-1" {
		t.Errorf("got %q, want refreshed token", cred.AccessToken)
	}
	if cred.AthleteID != 42 {
		t.Errorf("athlete ID not carried through refresh: %d", cred.AthleteID)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly one refresh, got %d", n)
	}

	store.mu.Lock()
	saved := store.cred.AccessToken
	store.mu.Unlock()
	if saved != "access-1" {
		t.Errorf("refreshed credential not persisted, store holds %q", saved)
	}
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken:  "stale",
			RefreshToken: "stored-refresh",
			Expiry:       time.Now().Add(-time.Minute),
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	const workers = 50
	tokens := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := source.Credential(context.Background())
			tokens[i], errs[i] = cred.AccessToken, err
		}()
	}
	wg.Wait()

	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if tokens[i] != tokens[0] {
			t.Errorf("worker %d got %q, want shared %q", i, tokens[i], tokens[0])
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly one upstream refresh for %d callers, got %d", workers, n)
	}
}

func TestForceRefreshReplacesRejectedToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	// locally fresh, but the provider rejected it out-of-band
	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken:  "rejected",
			RefreshToken: "stored-refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	cred, err := source.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("force refresh: %v", err)
	}
	if cred.AccessToken == "rejected" {
		t.Error("force refresh returned the rejected token")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one refresh, got %d", n)
	}
}

func TestRefreshRejectedUpstreamIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Bad Request","errors":[{"field":"refresh_token","code":"invalid"}]}`)
	}))
	t.Cleanup(srv.Close)

	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			Expiry:       time.Now().Add(-time.Minute),
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	if _, err := source.Credential(context.Background()); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
}

func TestRefreshWithoutRefreshTokenIsFatal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	store := &memStore{
		cred: tokenstore.Credential{
			AccessToken: "stale",
			Expiry:      time.Now().Add(-time.Minute),
		},
		has: true,
	}

	source := NewTokenSource(testConfig(srv.URL), store)

	if _, err := source.Credential(context.Background()); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("no refresh should be attempted without a refresh token, got %d", n)
	}
}

func TestExchangePersistsCredential(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := newTokenEndpoint(t, &calls)

	store := &memStore{}
	auth := NewAuthenticator(testConfig(srv.URL), store)

	cred, err := auth.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if cred.AthleteID != 42 {
		t.Errorf("athlete ID not extracted, got %d", cred.AthleteID)
	}
	if !store.has {
		t.Error("credential not persisted")
	}
}

func TestExchangeRejectedCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Bad Request","errors":[{"field":"code","code":"invalid"}]}`)
	}))
	t.Cleanup(srv.Close)

	auth := NewAuthenticator(testConfig(srv.URL), &memStore{})

	if _, err := auth.Exchange(context.Background(), "bad-code"); !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected ErrAuthorizationDenied, got %v", err)
	}
}
