package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joebot/relaybot/internal/metrics"
	"github.com/joebot/relaybot/internal/twitch"
)

// StreamSource reports the live stream of a channel, nil when offline.
type StreamSource interface {
	Stream(ctx context.Context, login string) (*twitch.Stream, error)
}

// Transition is the outcome of diffing a snapshot against the stored state.
type Transition int

const (
	NoChange Transition = iota
	WentLive
	WentOffline
)

func (t Transition) String() string {
	switch t {
	case WentLive:
		return "went-live"
	case WentOffline:
		return "went-offline"
	default:
		return "no-change"
	}
}

// StreamPoller announces when a channel goes live. Going offline is recorded
// but not announced. A failed fetch leaves the live flag untouched.
type StreamPoller struct {
	src   StreamSource
	login string
	out   *Broadcaster

	mu   sync.Mutex
	live bool
}

// NewStreamPoller creates a poller for login.
func NewStreamPoller(src StreamSource, login string, out *Broadcaster) *StreamPoller {
	return &StreamPoller{src: src, login: login, out: out}
}

// Login is the watched channel.
func (p *StreamPoller) Login() string { return p.login }

// Live reports the stored live flag.
func (p *StreamPoller) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Fetch returns the current snapshot without touching the stored state.
func (p *StreamPoller) Fetch(ctx context.Context) (*twitch.Stream, error) {
	return p.src.Stream(ctx, p.login)
}

// Poll fetches a snapshot, updates the live flag and announces a go-live.
func (p *StreamPoller) Poll(ctx context.Context) Transition {
	s, err := p.Fetch(ctx)
	if err != nil {
		slog.Warn("Twitch poll failed, keeping previous state", "login", p.login, "err", err)
		metrics.PollErrors.WithLabelValues("twitch").Inc()
		return NoChange
	}

	t := p.apply(s != nil)
	switch t {
	case WentLive:
		slog.Info("Stream went live", "login", p.login, "title", s.Title, "game", s.GameName)
		content, embed := StreamAnnouncement(s)
		p.out.Broadcast(ctx, "twitch", content, embed)
	case WentOffline:
		slog.Info("Stream ended", "login", p.login)
	}
	return t
}

// apply records the observed state and returns the transition it caused.
func (p *StreamPoller) apply(present bool) Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case present && !p.live:
		p.live = true
		metrics.SetLive(true)
		return WentLive
	case !present && p.live:
		p.live = false
		metrics.SetLive(false)
		return WentOffline
	default:
		return NoChange
	}
}
