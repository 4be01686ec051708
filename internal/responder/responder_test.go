package responder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel/channeltest"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeGen struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (g *fakeGen) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func always() float64 { return 0 }

func seed(f *channeltest.Fake, now time.Time, contents ...string) {
	for i, c := range contents {
		f.AddMessage(&bus.InboundMessage{
			ID:        string(rune('a' + i)),
			ChannelID: "c1",
			Author:    bus.Author{ID: "u", Username: "user" + string(rune('a'+i))},
			Content:   c,
			Timestamp: now.Add(time.Duration(i-len(contents)) * time.Minute),
		})
	}
}

func TestRateWindowCapacity(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	w := NewRateWindow(10, time.Hour, c.Now)

	for i := 0; i < 10; i++ {
		require.True(t, w.Reserve(), "reserve %d", i+1)
		w.Commit()
		c.Advance(time.Minute)
	}
	assert.False(t, w.Reserve(), "11th send within the hour must be refused")
	assert.Equal(t, 10, w.Used())

	// The first entry was stamped at 12:00; it is now 12:10.
	c.Advance(50*time.Minute + time.Second)
	assert.Equal(t, 9, w.Used())
	require.True(t, w.Reserve())
	assert.False(t, w.Reserve(), "exactly one slot freed")
}

func TestRateWindowCancelReleasesSlot(t *testing.T) {
	w := NewRateWindow(1, time.Hour, nil)
	require.True(t, w.Reserve())
	assert.False(t, w.Reserve())
	w.Cancel()
	assert.True(t, w.Reserve())
	assert.Equal(t, 0, w.Used())
}

func TestRateWindowConcurrentReserve(t *testing.T) {
	w := NewRateWindow(10, time.Hour, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Reserve() {
				mu.Lock()
				granted++
				mu.Unlock()
				w.Commit()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, granted)
	assert.Equal(t, 10, w.Used())
}

func TestConsiderSendsReply(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := channeltest.New("bot")
	seed(f, c.Now(), "anyone up?", "yeah just got home")
	gen := &fakeGen{reply: "welcome back!"}
	r := New(f, gen, WithRand(always), WithClock(c.Now))

	sent := r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"})

	require.True(t, sent)
	out := f.Sent()
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ChannelID)
	assert.Equal(t, "welcome back!", out[0].Content)
	assert.Nil(t, out[0].Embed)
	assert.Equal(t, 1, r.Window().Used())

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "usera: anyone up?\nuserb: yeah just got home")
}

func TestConsiderProbabilityGate(t *testing.T) {
	f := channeltest.New("bot")
	seed(f, time.Now(), "a", "b")
	gen := &fakeGen{reply: "x"}
	r := New(f, gen, WithRand(func() float64 { return 0.005 }))

	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
	assert.Empty(t, gen.prompts)
}

func TestConsiderNeedsTwoRecentMessages(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := channeltest.New("bot")
	f.AddMessage(&bus.InboundMessage{ID: "old", ChannelID: "c1", Author: bus.Author{Username: "x"}, Content: "ancient", Timestamp: c.Now().Add(-3 * time.Hour)})
	f.AddMessage(&bus.InboundMessage{ID: "new", ChannelID: "c1", Author: bus.Author{Username: "y"}, Content: "fresh", Timestamp: c.Now()})
	gen := &fakeGen{reply: "x"}
	r := New(f, gen, WithRand(always), WithClock(c.Now))

	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
	assert.Empty(t, gen.prompts)
	assert.Equal(t, 0, r.Window().Used())
	assert.True(t, r.Window().Reserve(), "skipped attempt must release its slot")
}

func TestConsiderSwallowsErrors(t *testing.T) {
	f := channeltest.New("bot")
	seed(f, time.Now(), "a", "b")
	r := New(f, &fakeGen{err: errors.New("provider down")}, WithRand(always))
	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
	assert.Empty(t, f.Sent())

	f.HistoryErr = errors.New("missing access")
	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))

	assert.Equal(t, 0, r.Window().Used())
}

func TestConsiderEleventhSuppressed(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := channeltest.New("bot")
	seed(f, c.Now(), "a", "b")
	gen := &fakeGen{reply: "ok"}
	r := New(f, gen, WithRand(always), WithClock(c.Now))

	for i := 0; i < 10; i++ {
		require.True(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}), "reply %d", i+1)
	}
	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
	assert.Len(t, gen.prompts, 10)

	c.Advance(time.Hour + time.Second)
	assert.True(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
}

func TestConsiderWithoutGenerator(t *testing.T) {
	r := New(channeltest.New("bot"), nil, WithRand(always))
	assert.False(t, r.Consider(context.Background(), &bus.InboundMessage{ChannelID: "c1"}))
}
