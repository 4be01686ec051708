package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/poller"
	"github.com/joebot/relaybot/internal/responder"
	"github.com/joebot/relaybot/internal/twitch"
	"github.com/joebot/relaybot/internal/youtube"
)

// Generator produces text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// StreamChecker is the stream poller as seen by commands.
type StreamChecker interface {
	Login() string
	Live() bool
	Fetch(ctx context.Context) (*twitch.Stream, error)
}

// VideoChecker is the video poller as seen by commands.
type VideoChecker interface {
	ChannelName() string
	LastSeen() (string, bool)
	Fetch(ctx context.Context) (*youtube.Video, error)
}

// Deps are the collaborators commands may use. Nil fields mean the feature
// is disabled and the commands that need it say so.
type Deps struct {
	Platform channel.Platform
	LLM      Generator
	Streams  StreamChecker
	Videos   VideoChecker
	Window   *responder.RateWindow
}

var (
	errNoLLM     = errors.New("AI features are disabled: no LLM API key is configured")
	errNoTwitch  = errors.New("Twitch alerts are disabled: TWITCH_CLIENT_ID / TWITCH_CLIENT_SECRET are not set")
	errNoYouTube = errors.New("YouTube alerts are disabled: YOUTUBE_API_KEY / YOUTUBE_CHANNEL_ID are not set")
)

// RegisterAll registers every built-in command.
func RegisterAll(r *Registry, d Deps) {
	r.Register(hello())
	r.Register(ask(d))
	r.Register(testLive(d))
	r.Register(testVideo(d))
	r.Register(replyTo(d))
	r.Register(analyze(d))
	r.Register(status(d))
	r.Register(help(r))
}

func hello() *Command {
	return &Command{
		Name:        "hello",
		Usage:       "!hello",
		Description: "Say hello",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			return []Reply{{Content: fmt.Sprintf("Hello, %s! 👋", req.Message.Author.Name())}}, nil
		},
	}
}

func help(r *Registry) *Command {
	return &Command{
		Name:        "help",
		Usage:       "!help",
		Description: "List commands",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			var sb strings.Builder
			sb.WriteString("**Commands**\n")
			for _, c := range r.Commands() {
				fmt.Fprintf(&sb, "`%s` %s\n", c.Usage, c.Description)
			}
			return []Reply{{Content: strings.TrimRight(sb.String(), "\n")}}, nil
		},
	}
}

func status(d Deps) *Command {
	return &Command{
		Name:        "status",
		Usage:       "!status",
		Description: "Show poller and auto-reply state",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			embed := &bus.Embed{Title: "Bot status", Color: 0x95A5A6}

			twitchState := "disabled"
			if d.Streams != nil {
				twitchState = d.Streams.Login() + ": offline"
				if d.Streams.Live() {
					twitchState = d.Streams.Login() + ": 🔴 live"
				}
			}
			youtubeState := "disabled"
			if d.Videos != nil {
				youtubeState = "waiting for first poll"
				if id, ok := d.Videos.LastSeen(); ok {
					youtubeState = "last seen `" + id + "`"
				}
			}
			replies := "disabled"
			if d.LLM != nil && d.Window != nil {
				replies = strconv.Itoa(d.Window.Used()) + "/" + strconv.Itoa(d.Window.Capacity()) + " this hour"
			}

			embed.Fields = []bus.EmbedField{
				{Name: "Twitch", Value: twitchState, Inline: true},
				{Name: "YouTube", Value: youtubeState, Inline: true},
				{Name: "Auto-replies", Value: replies, Inline: true},
			}
			return []Reply{{Embed: embed}}, nil
		},
	}
}

func testLive(d Deps) *Command {
	return &Command{
		Name:        "testlive",
		Usage:       "!testlive",
		Description: "Check Twitch now and preview the live alert",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			if d.Streams == nil {
				return nil, errNoTwitch
			}
			ctx, cancel := context.WithTimeout(ctx, poller.DefaultTimeout)
			defer cancel()
			s, err := d.Streams.Fetch(ctx)
			if err != nil {
				return nil, fmt.Errorf("couldn't check Twitch: %w", err)
			}
			if s == nil {
				return []Reply{{Content: fmt.Sprintf("⚫ %s is not live right now.", d.Streams.Login())}}, nil
			}
			content, embed := poller.StreamAnnouncement(s)
			return []Reply{{Content: content, Embed: embed}}, nil
		},
	}
}

func testVideo(d Deps) *Command {
	return &Command{
		Name:        "testvideo",
		Usage:       "!testvideo",
		Description: "Fetch the latest YouTube upload and preview its alert",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			if d.Videos == nil {
				return nil, errNoYouTube
			}
			ctx, cancel := context.WithTimeout(ctx, poller.DefaultTimeout)
			defer cancel()
			v, err := d.Videos.Fetch(ctx)
			if err != nil {
				return nil, fmt.Errorf("couldn't check YouTube: %w", err)
			}
			if v == nil {
				return []Reply{{Content: "No videos found on the channel."}}, nil
			}
			content, embed := poller.VideoAnnouncement(v, d.Videos.ChannelName())
			return []Reply{{Content: content, Embed: embed}}, nil
		},
	}
}
