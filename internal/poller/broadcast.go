package poller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/metrics"
)

// NotificationChannel is where announcements are posted in each guild.
const NotificationChannel = "stream-alerts"

// Broadcaster posts one announcement to the notification channel of every
// guild the bot is in. Guilds without that channel are skipped.
type Broadcaster struct {
	platform    channel.Platform
	channelName string
}

// NewBroadcaster creates a broadcaster. An empty name selects NotificationChannel.
func NewBroadcaster(p channel.Platform, channelName string) *Broadcaster {
	if channelName == "" {
		channelName = NotificationChannel
	}
	return &Broadcaster{platform: p, channelName: channelName}
}

// Broadcast sends content and embed everywhere and returns how many guilds
// received it. source labels the notification metric.
func (b *Broadcaster) Broadcast(ctx context.Context, source, content string, embed *bus.Embed) int {
	sent := 0
	for _, guildID := range b.platform.GuildIDs() {
		chID, err := b.platform.FindChannel(guildID, b.channelName)
		if err != nil {
			if !errors.Is(err, channel.ErrNotFound) {
				slog.Warn("Notification channel lookup failed", "guild", guildID, "err", err)
			}
			continue
		}
		msg := &bus.OutboundMessage{
			Platform:  b.platform.Name(),
			ChannelID: chID,
			Content:   content,
			Embed:     embed,
		}
		if err := b.platform.Send(ctx, msg); err != nil {
			slog.Error("Notification send failed", "guild", guildID, "channel", chID, "source", source, "err", err)
			continue
		}
		sent++
		metrics.Notifications.WithLabelValues(source).Inc()
	}
	if sent == 0 {
		slog.Warn("Notification not delivered to any guild", "source", source, "channel", "#"+b.channelName)
	}
	return sent
}
