package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel/channeltest"
	"github.com/joebot/relaybot/internal/responder"
	"github.com/joebot/relaybot/internal/twitch"
	"github.com/joebot/relaybot/internal/youtube"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		args   string
		wantOK bool
	}{
		{"!hello", "hello", "", true},
		{"  !ASK what is a duck? ", "ask", "what is a duck?", true},
		{"!ask\nmulti\nline", "ask", "multi\nline", true},
		{"!replyto 123 be nice", "replyto", "123 be nice", true},
		{"hello", "", "", false},
		{"!", "", "", false},
		{"! hello", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := Parse(tt.in)
		if ok != tt.wantOK || name != tt.name || args != tt.args {
			t.Errorf("Parse(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, name, args, ok, tt.name, tt.args, tt.wantOK)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("SplitMessage(short) = %q", got)
	}

	long := strings.Repeat("a", 12) + "\n" + strings.Repeat("b", 10)
	got := SplitMessage(long, 15)
	if len(got) != 2 || got[0] != strings.Repeat("a", 12)+"\n" || got[1] != strings.Repeat("b", 10) {
		t.Errorf("SplitMessage(newline) = %q", got)
	}

	runes := strings.Repeat("🦆", 25)
	got = SplitMessage(runes, 10)
	if len(got) != 3 || strings.Join(got, "") != runes {
		t.Errorf("SplitMessage(runes) = %q", got)
	}
	for _, c := range got {
		if n := len([]rune(c)); n > 10 {
			t.Errorf("chunk has %d runes", n)
		}
	}
}

type outbox struct {
	mu  sync.Mutex
	out []*bus.OutboundMessage
}

func (o *outbox) send(ctx context.Context, m *bus.OutboundMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.out = append(o.out, m)
	return nil
}

type fakeGen struct {
	reply   string
	err     error
	systems []string
	prompts []string
}

func (g *fakeGen) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.systems = append(g.systems, system)
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

type fakeStreams struct {
	stream *twitch.Stream
	err    error
	live   bool
}

func (s *fakeStreams) Login() string { return "duckyduckdotcom" }
func (s *fakeStreams) Live() bool    { return s.live }
func (s *fakeStreams) Fetch(ctx context.Context) (*twitch.Stream, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("fetch without deadline")
	}
	return s.stream, s.err
}

type fakeVideos struct {
	video *youtube.Video
	err   error
	last  string
}

func (v *fakeVideos) ChannelName() string { return "Ducky" }
func (v *fakeVideos) LastSeen() (string, bool) {
	return v.last, v.last != ""
}
func (v *fakeVideos) Fetch(ctx context.Context) (*youtube.Video, error) {
	return v.video, v.err
}

func newRegistry(d Deps) (*Registry, *outbox) {
	box := &outbox{}
	r := NewRegistry("fake", box.send)
	RegisterAll(r, d)
	return r, box
}

func invoke(content string) *bus.InboundMessage {
	return &bus.InboundMessage{
		ID:        "900",
		ChannelID: "cmd",
		GuildID:   "g1",
		Author:    bus.Author{ID: "u1", Username: "ducky", DisplayName: "Ducky"},
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestHandleIgnoresUnknownAndPlainText(t *testing.T) {
	r, box := newRegistry(Deps{Platform: channeltest.New("bot")})
	assert.False(t, r.Handle(context.Background(), invoke("just chatting")))
	assert.False(t, r.Handle(context.Background(), invoke("!nosuchcommand")))
	assert.Empty(t, box.out)
}

func TestHello(t *testing.T) {
	r, box := newRegistry(Deps{Platform: channeltest.New("bot")})
	require.True(t, r.Handle(context.Background(), invoke("!Hello")))
	require.Len(t, box.out, 1)
	assert.Equal(t, "cmd", box.out[0].ChannelID)
	assert.Equal(t, "fake", box.out[0].Platform)
	assert.Contains(t, box.out[0].Content, "Hello, Ducky!")
}

func TestHelpListsEveryCommand(t *testing.T) {
	r, box := newRegistry(Deps{Platform: channeltest.New("bot")})
	r.Handle(context.Background(), invoke("!help"))
	require.Len(t, box.out, 1)
	for _, c := range r.Commands() {
		assert.Contains(t, box.out[0].Content, c.Usage)
	}
}

func TestAsk(t *testing.T) {
	t.Run("no llm", func(t *testing.T) {
		r, box := newRegistry(Deps{Platform: channeltest.New("bot")})
		r.Handle(context.Background(), invoke("!ask hi"))
		require.Len(t, box.out, 1)
		assert.True(t, strings.HasPrefix(box.out[0].Content, "❌"))
		assert.Contains(t, box.out[0].Content, "disabled")
	})

	t.Run("usage", func(t *testing.T) {
		gen := &fakeGen{reply: "x"}
		r, box := newRegistry(Deps{Platform: channeltest.New("bot"), LLM: gen})
		r.Handle(context.Background(), invoke("!ask"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "usage: `!ask <question>`")
		assert.Empty(t, gen.prompts)
	})

	t.Run("long answer is chunked", func(t *testing.T) {
		gen := &fakeGen{reply: strings.Repeat("q", MaxMessageLen+10)}
		r, box := newRegistry(Deps{Platform: channeltest.New("bot"), LLM: gen})
		r.Handle(context.Background(), invoke("!ask what do ducks eat"))
		require.Len(t, box.out, 2)
		assert.Equal(t, []string{"what do ducks eat"}, gen.prompts)
		assert.Len(t, []rune(box.out[0].Content), MaxMessageLen)
	})

	t.Run("provider error", func(t *testing.T) {
		gen := &fakeGen{err: errors.New("quota exceeded")}
		r, box := newRegistry(Deps{Platform: channeltest.New("bot"), LLM: gen})
		r.Handle(context.Background(), invoke("!ask hi"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "quota exceeded")
	})
}

func TestHandleReturnsWhenOutboundFullAndCancelled(t *testing.T) {
	b := bus.NewMessageBus()
	for i := 0; i < cap(b.Outbound); i++ {
		require.NoError(t, b.PublishOutbound(context.Background(), &bus.OutboundMessage{Platform: "fake"}))
	}
	gen := &fakeGen{reply: strings.Repeat("q", MaxMessageLen*3)}
	r := NewRegistry("fake", b.PublishOutbound)
	RegisterAll(r, Deps{Platform: channeltest.New("bot"), LLM: gen})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan bool)
	go func() { done <- r.Handle(ctx, invoke("!ask quack")) }()

	select {
	case handled := <-done:
		assert.True(t, handled)
	case <-time.After(time.Second):
		t.Fatal("Handle blocked on a full outbound queue after cancel")
	}
	assert.Len(t, b.Outbound, cap(b.Outbound))
}

func TestTestLive(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		r, box := newRegistry(Deps{Platform: channeltest.New("bot")})
		r.Handle(context.Background(), invoke("!testlive"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "Twitch alerts are disabled")
	})

	t.Run("offline", func(t *testing.T) {
		r, box := newRegistry(Deps{Platform: channeltest.New("bot"), Streams: &fakeStreams{}})
		r.Handle(context.Background(), invoke("!testlive"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "not live")
	})

	t.Run("live preview", func(t *testing.T) {
		s := &fakeStreams{stream: &twitch.Stream{UserLogin: "duckyduckdotcom", UserName: "Ducky", Title: "quack"}}
		r, box := newRegistry(Deps{Platform: channeltest.New("bot"), Streams: s})
		r.Handle(context.Background(), invoke("!testlive"))
		require.Len(t, box.out, 1)
		assert.Equal(t, "cmd", box.out[0].ChannelID)
		assert.Contains(t, box.out[0].Content, "is now live on Twitch")
		require.NotNil(t, box.out[0].Embed)
		assert.Equal(t, "quack", box.out[0].Embed.Title)
		assert.False(t, s.Live(), "preview must not touch poller state")
	})
}

func TestTestVideo(t *testing.T) {
	v := &fakeVideos{}
	r, box := newRegistry(Deps{Platform: channeltest.New("bot"), Videos: v})
	r.Handle(context.Background(), invoke("!testvideo"))
	require.Len(t, box.out, 1)
	assert.Contains(t, box.out[0].Content, "No videos")

	v.video = &youtube.Video{ID: "abc", Title: "Duck facts"}
	r.Handle(context.Background(), invoke("!testvideo"))
	require.Len(t, box.out, 2)
	assert.Contains(t, box.out[1].Content, "Ducky uploaded a new video")
	require.NotNil(t, box.out[1].Embed)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", box.out[1].Embed.URL)
}

func TestReplyTo(t *testing.T) {
	platform := func() *channeltest.Fake {
		f := channeltest.New("bot")
		f.AddChannel("g1", "commands", "cmd")
		f.AddChannel("g1", "general", "gen")
		f.AddMessage(&bus.InboundMessage{ID: "555", ChannelID: "gen", GuildID: "g1", Author: bus.Author{Username: "goose"}, Content: "ducks are overrated"})
		return f
	}

	t.Run("found in another channel", func(t *testing.T) {
		f := platform()
		gen := &fakeGen{reply: "respectfully, no"}
		r, box := newRegistry(Deps{Platform: f, LLM: gen})
		r.Handle(context.Background(), invoke("!replyto 555 be polite"))

		assert.Equal(t, []string{"555:👀"}, f.Reactions())
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "goose")
		assert.Contains(t, gen.prompts[0], "be polite")

		require.Len(t, box.out, 2)
		assert.Equal(t, "gen", box.out[0].ChannelID)
		assert.Equal(t, "555", box.out[0].ReplyTo)
		assert.Equal(t, "respectfully, no", box.out[0].Content)
		assert.Equal(t, "cmd", box.out[1].ChannelID)
		assert.Contains(t, box.out[1].Content, "<#gen>")
	})

	t.Run("same channel has no confirmation", func(t *testing.T) {
		f := platform()
		f.AddMessage(&bus.InboundMessage{ID: "777", ChannelID: "cmd", GuildID: "g1", Content: "hi"})
		r, box := newRegistry(Deps{Platform: f, LLM: &fakeGen{reply: "hello"}})
		r.Handle(context.Background(), invoke("!replyto 777"))
		require.Len(t, box.out, 1)
		assert.Equal(t, "777", box.out[0].ReplyTo)
	})

	t.Run("bad id", func(t *testing.T) {
		gen := &fakeGen{reply: "x"}
		r, box := newRegistry(Deps{Platform: platform(), LLM: gen})
		r.Handle(context.Background(), invoke("!replyto abc"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "not a message id")
		assert.Empty(t, gen.prompts)
	})

	t.Run("not found", func(t *testing.T) {
		r, box := newRegistry(Deps{Platform: platform(), LLM: &fakeGen{reply: "x"}})
		r.Handle(context.Background(), invoke("!replyto 123"))
		require.Len(t, box.out, 1)
		assert.Contains(t, box.out[0].Content, "couldn't find message `123`")
	})
}

func TestAnalyze(t *testing.T) {
	f := channeltest.New("bot")
	f.AddMessage(&bus.InboundMessage{ID: "42", ChannelID: "cmd", Author: bus.Author{Username: "goose"}, Content: "the moon is cheese"})
	gen := &fakeGen{reply: "Confident, dubious."}
	r, box := newRegistry(Deps{Platform: f, LLM: gen})

	r.Handle(context.Background(), invoke("!analyze"))
	require.Len(t, box.out, 1)
	assert.Contains(t, box.out[0].Content, "reply to a message")

	m := invoke("!analyze")
	m.ReplyTo = "42"
	r.Handle(context.Background(), m)
	require.Len(t, box.out, 2)
	assert.Contains(t, box.out[1].Content, "Confident, dubious.")
	assert.Contains(t, gen.prompts[0], "the moon is cheese")

	m.ReplyTo = "43"
	r.Handle(context.Background(), m)
	require.Len(t, box.out, 3)
	assert.Contains(t, box.out[2].Content, "no longer exists")
}

func TestStatus(t *testing.T) {
	w := responder.NewRateWindow(10, time.Hour, nil)
	require.True(t, w.Reserve())
	w.Commit()
	d := Deps{
		Platform: channeltest.New("bot"),
		LLM:      &fakeGen{},
		Streams:  &fakeStreams{live: true},
		Videos:   &fakeVideos{last: "v9"},
		Window:   w,
	}
	r, box := newRegistry(d)
	r.Handle(context.Background(), invoke("!status"))

	require.Len(t, box.out, 1)
	e := box.out[0].Embed
	require.NotNil(t, e)
	require.Len(t, e.Fields, 3)
	assert.Contains(t, e.Fields[0].Value, "live")
	assert.Contains(t, e.Fields[1].Value, "v9")
	assert.Equal(t, "1/10 this hour", e.Fields[2].Value)
}
