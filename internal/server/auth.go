package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/dittrime/stride/internal/apperr"
	"github.com/dittrime/stride/internal/cache"
	"github.com/dittrime/stride/internal/oauth"
)

const (
	stateTTL       = 5 * time.Minute
	stateKeyPrefix = "strava:oauth:state:"
)

type AuthHandler struct {
	auth   *oauth.Authenticator
	tokens *oauth.TokenSource
	states cache.Store
}

func NewAuthHandler(auth *oauth.Authenticator, tokens *oauth.TokenSource, states cache.Store) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		tokens: tokens,
		states: states,
	}
}

func (h *AuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	state, err := oauth.GenerateState()
	if err != nil {
		apperr.WriteError(r.Context(), w, apperr.Internal("failed to generate state", err))
		return
	}

	if err := h.states.Set(r.Context(), stateKeyPrefix+state, []byte("1"), stateTTL); err != nil {
		apperr.WriteError(r.Context(), w, apperr.StorageUnavailable(err))
		return
	}

	http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := q.Get("state")
	if state == "" {
		apperr.WriteError(r.Context(), w, apperr.BadRequest("missing state parameter"))
		return
	}
	if _, err := h.states.Get(r.Context(), stateKeyPrefix+state); err != nil {
		apperr.WriteError(r.Context(), w, apperr.BadRequest("invalid or expired state parameter"))
		return
	}
	_ = h.states.Invalidate(r.Context(), stateKeyPrefix+state)

	if errParam := q.Get("error"); errParam != "" {
		apperr.WriteError(r.Context(), w,
			apperr.AuthorizationDenied("authorization denied: "+errParam, nil))
		return
	}

	code := q.Get("code")
	if code == "" {
		apperr.WriteError(r.Context(), w, apperr.BadRequest("missing authorization code"))
		return
	}

	cred, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, oauth.ErrAuthorizationDenied) {
			apperr.WriteError(r.Context(), w,
				apperr.AuthorizationDenied("authorization code rejected", err))
			return
		}
		apperr.WriteError(r.Context(), w, apperr.Internal("code exchange failed", err))
		return
	}

	// drop any cached credential so the next request reads the new one
	h.tokens.Forget()

	writeData(w, map[string]any{
		"authorized": true,
		"athlete_id": cred.AthleteID,
	})
}

func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cred, err := h.tokens.Credential(r.Context())
	if err != nil {
		writeData(w, map[string]any{"authorized": false})
		return
	}
	writeData(w, map[string]any{
		"authorized": true,
		"athlete_id": cred.AthleteID,
		"expires_at": cred.Expiry,
	})
}
