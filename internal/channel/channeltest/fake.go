// Package channeltest provides an in-memory channel.Platform for tests.
package channeltest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
)

// Fake records every call made against it. The zero value is not usable; use New.
type Fake struct {
	mu sync.Mutex

	self     string
	guilds   map[string]map[string]string // guild -> channel name -> id
	messages map[string]map[string]*bus.InboundMessage
	history  map[string][]*bus.InboundMessage

	sent      []*bus.OutboundMessage
	deleted   []string
	reactions []string
	events    []string

	// SendErr, when set, is consulted before each send is recorded.
	SendErr func(msg *bus.OutboundMessage) error
	// DeleteErr is returned by every DeleteMessage call.
	DeleteErr error
	// HistoryErr is returned by every History call.
	HistoryErr error
}

var _ channel.Platform = (*Fake)(nil)

// New creates a fake whose bot account has the given id.
func New(selfID string) *Fake {
	return &Fake{
		self:     selfID,
		guilds:   make(map[string]map[string]string),
		messages: make(map[string]map[string]*bus.InboundMessage),
		history:  make(map[string][]*bus.InboundMessage),
	}
}

// AddChannel registers a text channel in a guild.
func (f *Fake) AddChannel(guildID, name, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guilds[guildID] == nil {
		f.guilds[guildID] = make(map[string]string)
	}
	f.guilds[guildID][name] = id
}

// AddMessage stores a message retrievable by Message and appends it to the
// channel's history as the newest entry.
func (f *Fake) AddMessage(m *bus.InboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages[m.ChannelID] == nil {
		f.messages[m.ChannelID] = make(map[string]*bus.InboundMessage)
	}
	f.messages[m.ChannelID][m.ID] = m
	f.history[m.ChannelID] = append([]*bus.InboundMessage{m}, f.history[m.ChannelID]...)
}

func (f *Fake) Name() string   { return "fake" }
func (f *Fake) SelfID() string { return f.self }

func (f *Fake) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		if err := f.SendErr(msg); err != nil {
			return err
		}
	}
	cp := *msg
	f.sent = append(f.sent, &cp)
	f.events = append(f.events, "send:"+msg.ChannelID)
	return nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "delete:"+messageID)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *Fake) FindChannel(guildID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.guilds[guildID][name]; ok {
		return id, nil
	}
	return "", fmt.Errorf("channel %q in guild %s: %w", name, guildID, channel.ErrNotFound)
}

func (f *Fake) GuildIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.guilds))
	for id := range f.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *Fake) TextChannels(guildID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chans, ok := f.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %s: %w", guildID, channel.ErrNotFound)
	}
	names := make([]string, 0, len(chans))
	for name := range chans {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = chans[name]
	}
	return ids, nil
}

func (f *Fake) Message(ctx context.Context, channelID, messageID string) (*bus.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[channelID][messageID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("message %s: %w", messageID, channel.ErrNotFound)
}

func (f *Fake) History(ctx context.Context, channelID string, limit int) ([]*bus.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	h := f.history[channelID]
	if len(h) > limit {
		h = h[:limit]
	}
	return append([]*bus.InboundMessage(nil), h...), nil
}

func (f *Fake) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, messageID+":"+emoji)
	return nil
}

// Sent returns a copy of every successfully sent message, in order.
func (f *Fake) Sent() []*bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*bus.OutboundMessage(nil), f.sent...)
}

// SentTo returns the messages sent to one channel, in order.
func (f *Fake) SentTo(channelID string) []*bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*bus.OutboundMessage
	for _, m := range f.sent {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

// Deleted returns the ids of successfully deleted messages.
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Reactions returns "messageID:emoji" for each reaction added.
func (f *Fake) Reactions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reactions...)
}

// Events returns the ordered log of "send:<channel>" and "delete:<message>" calls,
// including failed deletes.
func (f *Fake) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}
