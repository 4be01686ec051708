package channel

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/relaybot/internal/bus"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "missing permissions code",
			err: &discordgo.RESTError{
				Response: &http.Response{StatusCode: http.StatusForbidden},
				Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions, Message: "Missing Permissions"},
			},
			want: ErrPermissionDenied,
		},
		{
			name: "unknown message code",
			err: &discordgo.RESTError{
				Response: &http.Response{StatusCode: http.StatusNotFound},
				Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"},
			},
			want: ErrNotFound,
		},
		{
			name: "bare 404",
			err:  &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}},
			want: ErrNotFound,
		},
	}

	for _, tt := range tests {
		got := classify(tt.err)
		if !errors.Is(got, tt.want) {
			t.Errorf("%s: classify() = %v, want %v", tt.name, got, tt.want)
		}
	}

	plain := errors.New("socket closed")
	if got := classify(plain); got != plain {
		t.Errorf("classify(plain) = %v, want passthrough", got)
	}
}

func TestToInbound(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "10",
		ChannelID: "20",
		GuildID:   "30",
		Content:   "hello",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "40", Username: "duck", GlobalName: "Ducky"},
		Member:    &discordgo.Member{Nick: "Quack"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "a.png", URL: "https://cdn/a.png"},
		},
		MessageReference: &discordgo.MessageReference{MessageID: "9"},
	}

	got := toInbound(m)
	if got.Author.Name() != "Quack" {
		t.Errorf("author name = %q, want nickname", got.Author.Name())
	}
	if got.ReplyTo != "9" || !got.IsReply() {
		t.Errorf("ReplyTo = %q, want 9", got.ReplyTo)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "a.png" {
		t.Errorf("attachments = %+v", got.Attachments)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestToDiscordEmbed(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := toDiscordEmbed(&bus.Embed{
		Color:     0x3498DB,
		Timestamp: ts,
		Author:    &bus.EmbedAuthor{Name: "Ducky", IconURL: "https://cdn/avatar.png"},
		Fields:    []bus.EmbedField{{Name: "Original Channel", Value: Mention("20")}},
	})
	if e.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
	if e.Author == nil || e.Author.Name != "Ducky" {
		t.Errorf("author = %+v", e.Author)
	}
	if len(e.Fields) != 1 || e.Fields[0].Value != "<#20>" || e.Fields[0].Inline {
		t.Errorf("fields = %+v", e.Fields)
	}
}
