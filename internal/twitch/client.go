// Package twitch reports whether a channel is live using the Helix API and an
// app access token.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joebot/relaybot/internal/telemetry"
)

// HelixURL is the Helix API root.
const HelixURL = "https://api.twitch.tv/helix"

// ErrUnauthorized is returned when Helix rejects the bearer token.
var ErrUnauthorized = errors.New("twitch: unauthorized")

// Stream is a snapshot of a live broadcast.
type Stream struct {
	UserLogin   string
	UserName    string
	Title       string
	GameName    string
	ViewerCount int
	// ThumbnailURL is a template with {width} and {height} placeholders.
	ThumbnailURL string
	StartedAt    time.Time
}

// Thumbnail fills the thumbnail template with a concrete size.
func (s *Stream) Thumbnail(width, height int) string {
	r := strings.NewReplacer("{width}", strconv.Itoa(width), "{height}", strconv.Itoa(height))
	return r.Replace(s.ThumbnailURL)
}

// URL is the channel page.
func (s *Stream) URL() string {
	return "https://twitch.tv/" + s.UserLogin
}

// Client queries stream status.
type Client struct {
	ClientID string
	Tokens   *TokenSource
	HTTP     *http.Client
}

// NewClient creates a client with its own token source. A nil hc gets a
// client with a 15 second timeout.
func NewClient(clientID, clientSecret string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		ClientID: clientID,
		Tokens:   NewTokenSource(clientID, clientSecret, hc),
		HTTP:     hc,
	}
}

// Stream returns the live stream for login, or nil when the channel is offline.
// A rejected token is discarded and the call retried once with a fresh one.
func (c *Client) Stream(ctx context.Context, login string) (*Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "twitch", "twitch.stream", attribute.String("login", login))
	defer span.End()

	tok, err := c.Tokens.Get(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s, err := c.fetchStream(ctx, login, tok)
	if errors.Is(err, ErrUnauthorized) {
		slog.Info("Twitch token rejected, fetching a new one")
		c.Tokens.Invalidate(tok)
		if tok, err = c.Tokens.Get(ctx); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s, err = c.fetchStream(ctx, login, tok)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("live", s != nil))
	return s, nil
}

func (c *Client) fetchStream(ctx context.Context, login, token string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, HelixURL+"/streams", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("user_login", login)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitch streams request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "err", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("twitch streams: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var body struct {
		Data []struct {
			UserLogin    string    `json:"user_login"`
			UserName     string    `json:"user_name"`
			GameName     string    `json:"game_name"`
			Title        string    `json:"title"`
			ViewerCount  int       `json:"viewer_count"`
			StartedAt    time.Time `json:"started_at"`
			ThumbnailURL string    `json:"thumbnail_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode twitch streams: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	d := body.Data[0]
	return &Stream{
		UserLogin:    d.UserLogin,
		UserName:     d.UserName,
		Title:        d.Title,
		GameName:     d.GameName,
		ViewerCount:  d.ViewerCount,
		ThumbnailURL: d.ThumbnailURL,
		StartedAt:    d.StartedAt,
	}, nil
}
