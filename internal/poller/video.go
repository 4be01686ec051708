package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joebot/relaybot/internal/metrics"
	"github.com/joebot/relaybot/internal/youtube"
)

// VideoSource returns the newest upload of a channel, nil when there is none.
type VideoSource interface {
	LatestVideo(ctx context.Context, channelID string) (*youtube.Video, error)
}

// VideoPoller announces new uploads. The first snapshot after start only
// records a baseline.
type VideoPoller struct {
	src         VideoSource
	channelID   string
	channelName string
	out         *Broadcaster

	mu       sync.Mutex
	lastSeen string
	seeded   bool
}

// NewVideoPoller creates a poller for channelID; channelName is used in the
// announcement copy.
func NewVideoPoller(src VideoSource, channelID, channelName string, out *Broadcaster) *VideoPoller {
	return &VideoPoller{src: src, channelID: channelID, channelName: channelName, out: out}
}

// ChannelName is the display name used in announcements.
func (p *VideoPoller) ChannelName() string { return p.channelName }

// LastSeen returns the stored video id and whether a baseline exists.
func (p *VideoPoller) LastSeen() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen, p.seeded
}

// Fetch returns the latest upload without touching the stored state.
func (p *VideoPoller) Fetch(ctx context.Context) (*youtube.Video, error) {
	return p.src.LatestVideo(ctx, p.channelID)
}

// Poll fetches the latest upload and announces it if it is new. It reports
// whether an announcement was made.
func (p *VideoPoller) Poll(ctx context.Context) bool {
	v, err := p.Fetch(ctx)
	if err != nil {
		slog.Warn("YouTube poll failed, keeping previous state", "channel", p.channelID, "err", err)
		metrics.PollErrors.WithLabelValues("youtube").Inc()
		return false
	}
	if v == nil {
		slog.Debug("YouTube channel has no uploads", "channel", p.channelID)
		return false
	}

	if !p.observe(v.ID) {
		return false
	}
	slog.Info("New YouTube video", "id", v.ID, "title", v.Title, "live", v.Live)
	content, embed := VideoAnnouncement(v, p.channelName)
	p.out.Broadcast(ctx, "youtube", content, embed)
	return true
}

// observe stores id as the last seen video and reports whether it is new
// relative to an existing baseline.
func (p *VideoPoller) observe(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seeded {
		p.seeded = true
		p.lastSeen = id
		slog.Info("YouTube baseline recorded", "id", id)
		return false
	}
	isNew := id != p.lastSeen
	p.lastSeen = id
	return isNew
}
