package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dittrime/stride/internal/tokenstore"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ExpiryMargin treats tokens as expired this long before their actual
// expiry, avoiding races against in-flight requests.
const ExpiryMargin = 60 * time.Second

var (
	// ErrReauthRequired means the refresh token itself was rejected.
	// Fatal to the session: a full re-authorization is needed.
	ErrReauthRequired = errors.New("refresh token rejected - re-authorization required")

	// ErrAuthorizationDenied means the authorization code exchange was
	// rejected upstream (declined, invalid or expired code).
	ErrAuthorizationDenied = errors.New("authorization denied")
)

var _ oauth2.TokenSource = (*TokenSource)(nil)

// TokenSource hands out a valid access token, lazily refreshing through
// the provider when the stored credential has expired. Refreshes are
// single-flighted: N concurrent callers observing an expired token issue
// exactly one upstream refresh call and share its result. Strava rotates
// refresh tokens on use, so a duplicate refresh would invalidate the
// token a concurrent call just received.
type TokenSource struct {
	config *oauth2.Config
	store  tokenstore.Store
	now    func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	cached tokenstore.Credential
	valid  bool
}

type TokenSourceOption func(*TokenSource)

func WithClock(now func() time.Time) TokenSourceOption {
	return func(s *TokenSource) { s.now = now }
}

func NewTokenSource(config *oauth2.Config, store tokenstore.Store, opts ...TokenSourceOption) *TokenSource {
	s := &TokenSource{
		config: config,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token implements oauth2.TokenSource for the authenticating transport.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
		Expiry:      cred.Expiry,
	}, nil
}

// Credential returns a credential whose access token is valid for at
// least ExpiryMargin, refreshing if necessary.
func (s *TokenSource) Credential(ctx context.Context) (tokenstore.Credential, error) {
	s.mu.Lock()
	if s.valid && s.fresh(s.cached) {
		cred := s.cached
		s.mu.Unlock()
		return cred, nil
	}
	s.mu.Unlock()

	cred, err := s.store.Load(ctx)
	if err != nil {
		return tokenstore.Credential{}, err
	}

	if s.fresh(cred) {
		s.remember(cred)
		return cred, nil
	}

	return s.refresh(ctx, cred, "")
}

// ForceRefresh obtains a new credential even though the stored one still
// looks valid locally. Used after an upstream 401: the provider
// invalidated the token out-of-band.
func (s *TokenSource) ForceRefresh(ctx context.Context) (tokenstore.Credential, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return tokenstore.Credential{}, err
	}
	return s.refresh(ctx, cred, cred.AccessToken)
}

// AthleteID reports the athlete the stored credential belongs to, or 0
// when unauthenticated.
func (s *TokenSource) AthleteID(ctx context.Context) int64 {
	s.mu.Lock()
	if s.valid {
		id := s.cached.AthleteID
		s.mu.Unlock()
		return id
	}
	s.mu.Unlock()

	cred, err := s.store.Load(ctx)
	if err != nil {
		return 0
	}
	return cred.AthleteID
}

func (s *TokenSource) fresh(cred tokenstore.Credential) bool {
	return cred.AccessToken != "" && s.now().Add(ExpiryMargin).Before(cred.Expiry)
}

func (s *TokenSource) remember(cred tokenstore.Credential) {
	s.mu.Lock()
	s.cached = cred
	s.valid = true
	s.mu.Unlock()
}

// Forget drops the in-memory credential so the next call reloads from the
// store. Called after a re-authorization replaces the stored record.
func (s *TokenSource) Forget() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

// refresh exchanges the refresh token for a new credential. rejected is
// the access token the upstream refused, empty for a plain expiry; a
// concurrent caller's refresh satisfies this one as long as it produced a
// fresh credential different from the rejected token.
func (s *TokenSource) refresh(ctx context.Context, stale tokenstore.Credential, rejected string) (tokenstore.Credential, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		current, err := s.store.Load(ctx)
		if err == nil && s.fresh(current) && current.AccessToken != rejected {
			return current, nil
		}
		if err != nil {
			current = stale
		}

		if current.RefreshToken == "" {
			return nil, ErrReauthRequired
		}

		src := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
		token, err := src.Token()
		if err != nil {
			return nil, classifyRefreshError(err)
		}

		cred := credentialFromToken(token, current.AthleteID)
		if err := s.store.Save(ctx, cred); err != nil {
			return nil, fmt.Errorf("saving refreshed credential: %w", err)
		}

		s.remember(cred)
		return cred, nil
	})
	if err != nil {
		return tokenstore.Credential{}, err
	}
	return v.(tokenstore.Credential), nil
}

func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}
	return fmt.Errorf("refreshing token: %w", err)
}

func credentialFromToken(token *oauth2.Token, athleteID int64) tokenstore.Credential {
	cred := tokenstore.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		AthleteID:    athleteID,
	}
	if id := athleteIDFromToken(token); id != 0 {
		cred.AthleteID = id
	}
	return cred
}

// athleteIDFromToken pulls the athlete summary Strava attaches to its
// token responses.
func athleteIDFromToken(token *oauth2.Token) int64 {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	id, ok := athlete["id"].(float64)
	if !ok {
		return 0
	}
	return int64(id)
}

// Authenticator performs the one-time authorization-code exchange.
type Authenticator struct {
	config *oauth2.Config
	store  tokenstore.Store
}

func NewAuthenticator(config *oauth2.Config, store tokenstore.Store) *Authenticator {
	return &Authenticator{config: config, store: store}
}

// AuthCodeURL builds the provider authorization URL for the given CSRF
// state.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for a credential and persists it.
// Never retried: an invalid or expired code surfaces as
// ErrAuthorizationDenied and the user re-authorizes.
func (a *Authenticator) Exchange(ctx context.Context, code string) (tokenstore.Credential, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= http.StatusBadRequest &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return tokenstore.Credential{}, fmt.Errorf("%w: %w", ErrAuthorizationDenied, err)
		}
		return tokenstore.Credential{}, fmt.Errorf("exchanging code: %w", err)
	}

	cred := credentialFromToken(token, 0)
	if err := a.store.Save(ctx, cred); err != nil {
		return tokenstore.Credential{}, fmt.Errorf("saving credential: %w", err)
	}
	return cred, nil
}
