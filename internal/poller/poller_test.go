package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joebot/relaybot/internal/channel/channeltest"
	"github.com/joebot/relaybot/internal/twitch"
	"github.com/joebot/relaybot/internal/youtube"
)

type streamStep struct {
	stream *twitch.Stream
	err    error
}

type scriptedStreams struct {
	mu    sync.Mutex
	steps []streamStep
}

func (s *scriptedStreams) Stream(ctx context.Context, login string) (*twitch.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.stream, step.err
}

type videoStep struct {
	video *youtube.Video
	err   error
}

type scriptedVideos struct {
	steps []videoStep
}

func (s *scriptedVideos) LatestVideo(ctx context.Context, channelID string) (*youtube.Video, error) {
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.video, step.err
}

func alertsFake() *channeltest.Fake {
	f := channeltest.New("bot")
	f.AddChannel("g1", NotificationChannel, "alerts1")
	f.AddChannel("g1", "general", "gen1")
	f.AddChannel("g2", "general", "gen2")
	f.AddChannel("g3", NotificationChannel, "alerts3")
	return f
}

var live = &twitch.Stream{UserLogin: "duckyduckdotcom", UserName: "Ducky", Title: "quack", GameName: "Chess", ViewerCount: 5}

func TestStreamPollerEdgeTriggered(t *testing.T) {
	f := alertsFake()
	src := &scriptedStreams{steps: []streamStep{{nil, nil}, {live, nil}, {live, nil}, {nil, nil}}}
	p := NewStreamPoller(src, "duckyduckdotcom", NewBroadcaster(f, ""))

	var got []Transition
	for i := 0; i < 4; i++ {
		got = append(got, p.Poll(context.Background()))
	}

	assert.Equal(t, []Transition{NoChange, WentLive, NoChange, WentOffline}, got)
	assert.False(t, p.Live())
	// One announcement, delivered to the two guilds that have the channel.
	assert.Len(t, f.SentTo("alerts1"), 1)
	assert.Len(t, f.SentTo("alerts3"), 1)
	assert.Len(t, f.Sent(), 2)
}

func TestStreamPollerErrorKeepsState(t *testing.T) {
	f := alertsFake()
	boom := errors.New("timeout")
	src := &scriptedStreams{steps: []streamStep{{live, nil}, {nil, boom}, {live, nil}, {nil, boom}, {nil, nil}}}
	p := NewStreamPoller(src, "duckyduckdotcom", NewBroadcaster(f, ""))

	assert.Equal(t, WentLive, p.Poll(context.Background()))
	assert.Equal(t, NoChange, p.Poll(context.Background()), "a failed fetch is not an offline snapshot")
	assert.True(t, p.Live())
	assert.Equal(t, NoChange, p.Poll(context.Background()))
	assert.Equal(t, NoChange, p.Poll(context.Background()))
	assert.Equal(t, WentOffline, p.Poll(context.Background()))

	assert.Len(t, f.SentTo("alerts1"), 1)
}

func TestStreamPollerFetchDoesNotMutate(t *testing.T) {
	src := &scriptedStreams{steps: []streamStep{{live, nil}}}
	p := NewStreamPoller(src, "duckyduckdotcom", NewBroadcaster(alertsFake(), ""))

	s, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, p.Live())
}

func TestVideoPollerBaseline(t *testing.T) {
	f := alertsFake()
	src := &scriptedVideos{steps: []videoStep{
		{&youtube.Video{ID: "v1", Title: "first"}, nil},
		{&youtube.Video{ID: "v1", Title: "first"}, nil},
		{nil, errors.New("quota")},
		{nil, nil},
		{&youtube.Video{ID: "v2", Title: "second"}, nil},
		{&youtube.Video{ID: "v2", Title: "second"}, nil},
	}}
	p := NewVideoPoller(src, "UC1", "Ducky", NewBroadcaster(f, ""))

	var notified []bool
	for i := 0; i < 6; i++ {
		notified = append(notified, p.Poll(context.Background()))
	}

	assert.Equal(t, []bool{false, false, false, false, true, false}, notified)
	id, seeded := p.LastSeen()
	assert.True(t, seeded)
	assert.Equal(t, "v2", id)
	require.Len(t, f.SentTo("alerts1"), 1)
	assert.Contains(t, f.SentTo("alerts1")[0].Content, "uploaded a new video")
}

func TestVideoPollerErrorBeforeBaseline(t *testing.T) {
	f := alertsFake()
	src := &scriptedVideos{steps: []videoStep{
		{nil, errors.New("quota")},
		{&youtube.Video{ID: "v1"}, nil},
	}}
	p := NewVideoPoller(src, "UC1", "Ducky", NewBroadcaster(f, ""))

	assert.False(t, p.Poll(context.Background()))
	_, seeded := p.LastSeen()
	assert.False(t, seeded)
	assert.False(t, p.Poll(context.Background()), "first successful fetch is the baseline")
	assert.Empty(t, f.Sent())
}

func TestBroadcastSkipsGuildsWithoutChannel(t *testing.T) {
	f := channeltest.New("bot")
	f.AddChannel("g1", "general", "gen1")
	b := NewBroadcaster(f, "")

	assert.Equal(t, 0, b.Broadcast(context.Background(), "twitch", "hi", nil))
	assert.Empty(t, f.Sent())
}

func TestRunnerIsolatesPanics(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("test", 10*time.Millisecond, 0, time.Second, func(ctx context.Context) {
		if calls.Add(1) == 1 {
			panic("first tick explodes")
		}
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunnerStartupDelayHonorsCancel(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner("test", time.Hour, time.Hour, 0, func(ctx context.Context) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Zero(t, calls.Load())
}

// rewriteTransport sends every request to the test server, keeping the path.
type rewriteTransport struct{ host string }

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.host, "http://")
	return http.DefaultTransport.RoundTrip(req)
}

func TestStreamPollerRecoversFromExpiredToken(t *testing.T) {
	var tokens atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth2/token":
			n := tokens.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"access_token": map[int32]string{1: "stale", 2: "fresh"}[n], "expires_in": 3600, "token_type": "bearer"})
		case "/helix/streams":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{"status": 401})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"user_login": "duckyduckdotcom", "user_name": "Ducky", "title": "back"}}})
		}
	}))
	defer srv.Close()

	client := twitch.NewClient("cid", "secret", &http.Client{Transport: &rewriteTransport{host: srv.URL}})
	f := alertsFake()
	p := NewStreamPoller(client, "duckyduckdotcom", NewBroadcaster(f, ""))

	assert.Equal(t, WentLive, p.Poll(context.Background()))
	assert.Equal(t, int32(2), tokens.Load())
	assert.Len(t, f.SentTo("alerts1"), 1)
}
