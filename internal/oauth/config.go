package oauth

import (
	"github.com/dittrime/stride/internal/config"
	"golang.org/x/oauth2"
)

const (
	authURL  = "https://www.strava.com/oauth/authorize"
	tokenURL = "https://www.strava.com/oauth/token" //nolint:gosec // not credentials, just endpoint URL
)

var scopes = []string{
	"read",
	"activity:read_all",
}

func NewConfig(strava config.Strava) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strava.ClientID,
		ClientSecret: strava.ClientSecret,
		RedirectURL:  strava.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}
