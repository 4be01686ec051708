// Package triage classifies each inbound message against the relay rules and
// performs at most one relay-then-delete per message.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/metrics"
	"github.com/joebot/relaybot/internal/telemetry"
)

// DistinguishedUserID is the account whose posts get per-kind relay channels.
const DistinguishedUserID = "1441164318711222353"

// Relay target channel names.
const (
	VideosChannel   = "videos"
	ImagesChannel   = "ducky-images"
	MessagesChannel = "ducky-messages"
)

// Embed colors.
const (
	ColorBlue   = 0x3498DB
	ColorPurple = 0x9B59B6
	ColorGreen  = 0x2ECC71
)

// RuleName identifies a relay rule.
type RuleName string

const (
	RuleVideo RuleName = "video-relay"
	RuleImage RuleName = "image-relay"
	RuleText  RuleName = "text-relay"
)

// Result is the outcome of triaging one message.
type Result struct {
	// Self is set when the message was written by the bot and ignored.
	Self bool
	// Rule is the rule that relayed the message, empty if none did.
	Rule RuleName
	// Handled means the relay completed and the original was deleted.
	Handled bool
	// Links are all URL-shaped substrings found in the message.
	Links []string
}

// Fired reports whether any relay rule acted on the message.
func (r Result) Fired() bool { return r.Rule != "" }

// facts are derived once per message and shared by every rule predicate.
type facts struct {
	links      []string
	videoLinks []string
	images     []bus.Attachment
}

// rule is one predicate/action pair. Rules run in slice order and the first
// one that relays ends evaluation for the message.
type rule struct {
	name    RuleName
	target  string
	color   int
	applies func(m *bus.InboundMessage, f *facts) bool
	// payload returns the embed description and the follow-up content messages.
	payload func(m *bus.InboundMessage, f *facts) (string, []string)
}

// Dispatcher runs the relay rules against inbound messages.
type Dispatcher struct {
	platform        channel.Platform
	distinguishedID string
	rules           []rule
}

// NewDispatcher creates a dispatcher. An empty distinguishedID selects DistinguishedUserID.
func NewDispatcher(p channel.Platform, distinguishedID string) *Dispatcher {
	if distinguishedID == "" {
		distinguishedID = DistinguishedUserID
	}
	d := &Dispatcher{platform: p, distinguishedID: distinguishedID}
	d.rules = []rule{
		{
			name:   RuleVideo,
			target: VideosChannel,
			color:  ColorBlue,
			applies: func(m *bus.InboundMessage, f *facts) bool {
				return len(f.videoLinks) > 0
			},
			payload: func(m *bus.InboundMessage, f *facts) (string, []string) {
				out := make([]string, len(f.videoLinks))
				for i, l := range f.videoLinks {
					out[i] = NormalizeLink(l)
				}
				return "", out
			},
		},
		{
			name:   RuleImage,
			target: ImagesChannel,
			color:  ColorPurple,
			applies: func(m *bus.InboundMessage, f *facts) bool {
				return d.isDistinguished(m) && len(f.images) > 0
			},
			payload: func(m *bus.InboundMessage, f *facts) (string, []string) {
				out := make([]string, len(f.images))
				for i, a := range f.images {
					out[i] = a.URL
				}
				return "", out
			},
		},
		{
			name:   RuleText,
			target: MessagesChannel,
			color:  ColorGreen,
			applies: func(m *bus.InboundMessage, f *facts) bool {
				return d.isDistinguished(m) &&
					strings.TrimSpace(m.Content) != "" &&
					len(f.links) == 0 &&
					len(m.Attachments) == 0
			},
			payload: func(m *bus.InboundMessage, f *facts) (string, []string) {
				return m.Content, nil
			},
		},
	}
	return d
}

func (d *Dispatcher) isDistinguished(m *bus.InboundMessage) bool {
	return m.Author.ID == d.distinguishedID
}

// Dispatch triages one message. It never returns an error: every failure is
// logged and leaves the original message in place.
func (d *Dispatcher) Dispatch(ctx context.Context, m *bus.InboundMessage) Result {
	if self := d.platform.SelfID(); self != "" && m.Author.ID == self {
		return Result{Self: true}
	}

	ctx, span := telemetry.StartSpan(ctx, "triage", "triage.dispatch",
		attribute.String("channel_id", m.ChannelID),
		attribute.String("message_id", m.ID),
	)
	defer span.End()

	f := &facts{links: ExtractLinks(m.Content)}
	f.videoLinks = VideoLinks(f.links)
	f.images = Images(m.Attachments)

	res := Result{Links: f.links}
	for _, r := range d.rules {
		if !r.applies(m, f) {
			continue
		}
		targetID, err := d.platform.FindChannel(m.GuildID, r.target)
		if err != nil {
			slog.Warn("Relay channel not found", "rule", r.name, "channel", r.target, "guild", m.GuildID, "err", err)
			continue
		}

		res.Rule = r.name
		desc, contents := r.payload(m, f)
		if err := d.relay(ctx, m, r, targetID, desc, contents); err != nil {
			slog.Error("Relay failed, original left in place", "rule", r.name, "target", r.target, "err", err)
			metrics.RelayFailures.WithLabelValues(string(r.name)).Inc()
			telemetry.RecordError(span, err)
			break
		}
		metrics.Relays.WithLabelValues(string(r.name)).Inc()
		res.Handled = d.deleteOriginal(ctx, m, r)
		if res.Handled {
			slog.Info("Relayed message and deleted original",
				"rule", r.name, "author", m.Author.Name(), "target", "#"+r.target, "items", max(len(contents), 1))
		}
		break
	}
	span.SetAttributes(attribute.String("rule", string(res.Rule)), attribute.Bool("handled", res.Handled))
	return res
}

// relay sends the attribution embed followed by each content message, in order.
func (d *Dispatcher) relay(ctx context.Context, m *bus.InboundMessage, r rule, targetID, desc string, contents []string) error {
	embed := AttributionEmbed(m, r.color)
	embed.Description = desc
	if err := d.platform.Send(ctx, &bus.OutboundMessage{Platform: d.platform.Name(), ChannelID: targetID, Embed: embed}); err != nil {
		return fmt.Errorf("send attribution: %w", err)
	}
	for i, c := range contents {
		if err := d.platform.Send(ctx, &bus.OutboundMessage{Platform: d.platform.Name(), ChannelID: targetID, Content: c}); err != nil {
			return fmt.Errorf("send item %d/%d: %w", i+1, len(contents), err)
		}
	}
	return nil
}

// deleteOriginal makes the single delete attempt for a relayed message.
func (d *Dispatcher) deleteOriginal(ctx context.Context, m *bus.InboundMessage, r rule) bool {
	err := d.platform.DeleteMessage(ctx, m.ChannelID, m.ID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, channel.ErrPermissionDenied):
		slog.Warn("Bot doesn't have permission to delete messages", "rule", r.name, "channel", m.ChannelID)
		metrics.DeleteFailures.WithLabelValues("permission").Inc()
	case errors.Is(err, channel.ErrNotFound):
		slog.Warn("Original message already gone", "rule", r.name, "message", m.ID)
		metrics.DeleteFailures.WithLabelValues("not_found").Inc()
	default:
		slog.Error("Error deleting message", "rule", r.name, "message", m.ID, "err", err)
		metrics.DeleteFailures.WithLabelValues("other").Inc()
	}
	return false
}

// AttributionEmbed builds the author card that precedes every relay.
func AttributionEmbed(m *bus.InboundMessage, color int) *bus.Embed {
	return &bus.Embed{
		Color:     color,
		Timestamp: m.Timestamp,
		Author:    &bus.EmbedAuthor{Name: m.Author.Name(), IconURL: m.Author.AvatarURL},
		Fields: []bus.EmbedField{
			{Name: "Original Channel", Value: channel.Mention(m.ChannelID)},
		},
	}
}
