package poller

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/twitch"
	"github.com/joebot/relaybot/internal/youtube"
)

const (
	ColorTwitch  = 0x9146FF
	ColorYouTube = 0xFF0000

	descriptionLimit = 300
)

// StreamAnnouncement builds the go-live message for s.
func StreamAnnouncement(s *twitch.Stream) (string, *bus.Embed) {
	name := s.UserName
	if name == "" {
		name = s.UserLogin
	}
	game := s.GameName
	if game == "" {
		game = "No category"
	}

	thumb := s.Thumbnail(1280, 720)
	if thumb != "" && !s.StartedAt.IsZero() {
		// Bust the chat client's image cache across streams.
		thumb += "?t=" + strconv.FormatInt(s.StartedAt.Unix(), 10)
	}

	embed := &bus.Embed{
		Title: s.Title,
		URL:   s.URL(),
		Color: ColorTwitch,
		Author: &bus.EmbedAuthor{
			Name: name,
			URL:  s.URL(),
		},
		Fields: []bus.EmbedField{
			{Name: "Category", Value: game, Inline: true},
			{Name: "Viewers", Value: strconv.Itoa(s.ViewerCount), Inline: true},
		},
		ImageURL:  thumb,
		Timestamp: s.StartedAt,
		Footer:    "Twitch",
	}
	content := fmt.Sprintf("🔴 **%s is now live on Twitch!**\n%s", name, s.URL())
	return content, embed
}

// VideoAnnouncement builds the new-upload message for v. Live broadcasts get
// their own copy.
func VideoAnnouncement(v *youtube.Video, channelName string) (string, *bus.Embed) {
	if channelName == "" {
		channelName = v.ChannelTitle
	}

	embed := &bus.Embed{
		Title:       v.Title,
		URL:         v.URL(),
		Description: truncate(v.Description, descriptionLimit),
		Color:       ColorYouTube,
		Author:      &bus.EmbedAuthor{Name: channelName},
		ImageURL:    v.ThumbnailURL,
		Timestamp:   v.PublishedAt,
		Footer:      "YouTube",
	}

	if v.Live {
		content := fmt.Sprintf("🔴 **%s is live on YouTube!**\n%s", channelName, v.URL())
		return content, embed
	}

	embed.Fields = []bus.EmbedField{
		{Name: "Views", Value: formatCount(v.ViewCount), Inline: true},
		{Name: "Likes", Value: formatCount(v.LikeCount), Inline: true},
	}
	if !v.PublishedAt.IsZero() {
		embed.Fields = append(embed.Fields, bus.EmbedField{
			Name: "Published", Value: v.PublishedAt.UTC().Format(time.RFC822), Inline: true,
		})
	}
	content := fmt.Sprintf("📺 **%s uploaded a new video!**\n%s", channelName, v.URL())
	return content, embed
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// formatCount renders n with thousands separators.
func formatCount(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
