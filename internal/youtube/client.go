// Package youtube looks up the most recent upload of a channel with the
// YouTube Data API.
package youtube

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/joebot/relaybot/internal/telemetry"
)

// Video is a snapshot of an upload.
type Video struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	ThumbnailURL string
	PublishedAt  time.Time
	ViewCount    uint64
	LikeCount    uint64
	// Live is set when the upload is a live broadcast.
	Live bool
}

// URL is the watch page of the video.
func (v *Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Client wraps the Data API service.
type Client struct {
	svc *yt.Service
}

// NewClient creates a client authenticated with an API key. Extra options are
// appended, which tests use to point the client at a local endpoint.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// LatestVideo returns the newest upload of channelID, or nil when the channel
// has none. It costs one search and one videos lookup.
func (c *Client) LatestVideo(ctx context.Context, channelID string) (*Video, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtube", "youtube.latest_video", attribute.String("channel_id", channelID))
	defer span.End()

	search, err := c.svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Order("date").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	if len(search.Items) == 0 || search.Items[0].Id == nil || search.Items[0].Id.VideoId == "" {
		return nil, nil
	}
	id := search.Items[0].Id.VideoId

	videos, err := c.svc.Videos.List([]string{"snippet", "statistics", "liveStreamingDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("youtube videos %s: %w", id, err)
	}
	if len(videos.Items) == 0 {
		err := fmt.Errorf("youtube video %s not found", id)
		telemetry.RecordError(span, err)
		return nil, err
	}

	v := toVideo(videos.Items[0])
	span.SetAttributes(attribute.String("video_id", v.ID), attribute.Bool("live", v.Live))
	return v, nil
}

func toVideo(item *yt.Video) *Video {
	v := &Video{ID: item.Id, Live: item.LiveStreamingDetails != nil}
	if s := item.Snippet; s != nil {
		v.Title = s.Title
		v.Description = s.Description
		v.ChannelTitle = s.ChannelTitle
		v.ThumbnailURL = bestThumbnail(s.Thumbnails)
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			v.PublishedAt = t
		}
	}
	if st := item.Statistics; st != nil {
		v.ViewCount = st.ViewCount
		v.LikeCount = st.LikeCount
	}
	return v
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
