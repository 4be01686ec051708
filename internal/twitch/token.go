package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenURL is the client-credentials token endpoint.
const TokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource lazily fetches an app access token and keeps it until the API
// rejects it. There is no proactive refresh.
type TokenSource struct {
	cfg  clientcredentials.Config
	http *http.Client

	mu    sync.Mutex
	token string
}

// NewTokenSource creates a token source. A nil client uses http.DefaultClient.
func NewTokenSource(clientID, clientSecret string, hc *http.Client) *TokenSource {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &TokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http: hc,
	}
}

// Get returns the cached token, fetching one first if none is held.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" {
		return ts.token, nil
	}
	if ts.cfg.ClientID == "" || ts.cfg.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}

	tok, err := ts.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, ts.http))
	if err != nil {
		return "", fmt.Errorf("twitch token request: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	ts.token = tok.AccessToken
	slog.Debug("Twitch app token fetched")
	return ts.token, nil
}

// Invalidate drops stale if it is still the cached token. A token already
// replaced by a concurrent caller is left alone.
func (ts *TokenSource) Invalidate(stale string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token == stale {
		ts.token = ""
	}
}
