// Package responder occasionally joins a conversation with a generated reply.
// It is rate limited and never surfaces its own failures in chat.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/metrics"
)

const (
	DefaultProbability = 0.005
	DefaultCapacity    = 10
	DefaultWindow      = time.Hour

	HistoryLimit  = 10
	HistoryMaxAge = 2 * time.Hour
	MinHistory    = 2
)

const persona = `You are Ducky's bot, a regular in a small, friendly community chat.
Read the recent conversation and add one short, casual message that fits in.
Match the tone of the chat. Do not introduce yourself, do not mention that you
are a bot, and keep it under two sentences.`

// Generator produces text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Responder decides whether to reply to a message and sends the reply.
type Responder struct {
	platform    channel.Platform
	gen         Generator
	window      *RateWindow
	probability float64
	rand        func() float64
	now         func() time.Time
}

// Option customizes a Responder.
type Option func(*Responder)

// WithRand replaces the uniform [0,1) sampler.
func WithRand(f func() float64) Option { return func(r *Responder) { r.rand = f } }

// WithClock replaces time.Now for history age checks and the rate window.
func WithClock(f func() time.Time) Option { return func(r *Responder) { r.now = f } }

// WithProbability sets the chance of attempting a reply per message.
func WithProbability(p float64) Option { return func(r *Responder) { r.probability = p } }

// New creates a responder. gen may be nil, in which case it never replies.
func New(p channel.Platform, gen Generator, opts ...Option) *Responder {
	r := &Responder{
		platform:    p,
		gen:         gen,
		probability: DefaultProbability,
		rand:        rand.Float64,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.window = NewRateWindow(DefaultCapacity, DefaultWindow, r.now)
	return r
}

// Window exposes the rate window for status reporting.
func (r *Responder) Window() *RateWindow {
	return r.window
}

// Consider runs the probability gate and, if it passes, tries to reply in the
// message's channel. It reports whether a reply was sent.
func (r *Responder) Consider(ctx context.Context, m *bus.InboundMessage) (sent bool) {
	if r.gen == nil {
		return false
	}
	if r.rand() >= r.probability {
		return false
	}
	if !r.window.Reserve() {
		slog.Debug("Opportunistic reply skipped, hourly limit reached", "channel", m.ChannelID)
		metrics.ResponderSkips.WithLabelValues("rate_limited").Inc()
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Opportunistic reply panicked", "panic", rec)
			metrics.ResponderSkips.WithLabelValues("error").Inc()
			sent = false
		}
		if sent {
			r.window.Commit()
		} else {
			r.window.Cancel()
		}
	}()

	transcript, n, err := r.transcript(ctx, m.ChannelID)
	if err != nil {
		slog.Warn("Opportunistic reply: history unavailable", "channel", m.ChannelID, "err", err)
		metrics.ResponderSkips.WithLabelValues("error").Inc()
		return false
	}
	if n < MinHistory {
		metrics.ResponderSkips.WithLabelValues("short_history").Inc()
		return false
	}

	reply, err := r.gen.Generate(ctx, persona, "Recent conversation:\n"+transcript+"\n\nYour message:")
	if err != nil {
		slog.Warn("Opportunistic reply: generation failed", "channel", m.ChannelID, "err", err)
		metrics.ResponderSkips.WithLabelValues("error").Inc()
		return false
	}

	out := &bus.OutboundMessage{Platform: r.platform.Name(), ChannelID: m.ChannelID, Content: reply}
	if err := r.platform.Send(ctx, out); err != nil {
		slog.Warn("Opportunistic reply: send failed", "channel", m.ChannelID, "err", err)
		metrics.ResponderSkips.WithLabelValues("error").Inc()
		return false
	}

	slog.Info("Opportunistic reply sent", "channel", m.ChannelID, "reply", reply)
	metrics.ResponderReplies.Inc()
	return true
}

// transcript renders recent, non-empty messages oldest first as "speaker: text".
func (r *Responder) transcript(ctx context.Context, channelID string) (string, int, error) {
	history, err := r.platform.History(ctx, channelID, HistoryLimit)
	if err != nil {
		return "", 0, fmt.Errorf("fetch history: %w", err)
	}

	cutoff := r.now().Add(-HistoryMaxAge)
	var lines []string
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		text := strings.TrimSpace(h.Content)
		if text == "" || h.Timestamp.Before(cutoff) {
			continue
		}
		lines = append(lines, h.Author.Name()+": "+text)
	}
	return strings.Join(lines, "\n"), len(lines), nil
}
