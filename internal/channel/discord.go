package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/config"
)

const discordIntents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// Discord connects to the Discord gateway through discordgo and exposes the
// REST operations the bot needs.
type Discord struct {
	config  config.DiscordConfig
	bus     *bus.MessageBus
	session *discordgo.Session

	mu     sync.RWMutex
	selfID string
	cancel context.CancelFunc
}

// NewDiscord creates a new Discord channel.
func NewDiscord(cfg config.DiscordConfig, b *bus.MessageBus) (*Discord, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord bot token not configured")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordIntents
	if cfg.RequestTimeout > 0 {
		session.Client = &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
	}
	return &Discord{config: cfg, bus: b, session: session}, nil
}

func (d *Discord) Name() string { return "discord" }

// SelfID returns the bot's own user id once the gateway is ready.
func (d *Discord) SelfID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfID
}

// Start opens the gateway connection and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.mu.Lock()
		d.selfID = r.User.ID
		d.mu.Unlock()
		slog.Info("Discord gateway READY", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil || m.Author == nil {
			return
		}
		d.bus.PublishInbound(ctx, toInbound(m.Message))
	})

	slog.Info("Connecting to Discord gateway...")
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	if u := d.session.State.User; u != nil {
		d.mu.Lock()
		d.selfID = u.ID
		d.mu.Unlock()
	}

	<-ctx.Done()
	slog.Info("Discord disconnecting")
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("discord close: %w", err)
	}
	return ctx.Err()
}

// Stop disconnects from Discord.
func (d *Discord) Stop() error {
	d.mu.RLock()
	cancel := d.cancel
	d.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Send posts content and/or an embed to a channel.
func (d *Discord) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	data := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{toDiscordEmbed(msg.Embed)}
	}
	if msg.ReplyTo != "" {
		data.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo, ChannelID: msg.ChannelID}
		data.AllowedMentions = &discordgo.MessageAllowedMentions{RepliedUser: false}
	}
	if _, err := d.session.ChannelMessageSendComplex(msg.ChannelID, data, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord message: %w", classify(err))
	}
	return nil
}

// DeleteMessage removes a message.
func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete discord message: %w", classify(err))
	}
	return nil
}

// FindChannel resolves a text channel by name within a guild.
func (d *Discord) FindChannel(guildID, name string) (string, error) {
	channels, err := d.guildChannels(guildID)
	if err != nil {
		return "", err
	}
	for _, c := range channels {
		if c.Name == name && isTextChannel(c) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("channel %q: %w", name, ErrNotFound)
}

// GuildIDs lists every guild the bot is present in.
func (d *Discord) GuildIDs() []string {
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	ids := make([]string, 0, len(d.session.State.Guilds))
	for _, g := range d.session.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

// TextChannels lists text channel ids of a guild.
func (d *Discord) TextChannels(guildID string) ([]string, error) {
	channels, err := d.guildChannels(guildID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range channels {
		if isTextChannel(c) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// Message fetches one message by id.
func (d *Discord) Message(ctx context.Context, channelID, messageID string) (*bus.InboundMessage, error) {
	m, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch discord message: %w", classify(err))
	}
	if m.GuildID == "" {
		if c, err := d.session.State.Channel(channelID); err == nil {
			m.GuildID = c.GuildID
		}
	}
	return toInbound(m), nil
}

// History returns up to limit recent messages, newest first.
func (d *Discord) History(ctx context.Context, channelID string, limit int) ([]*bus.InboundMessage, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch discord history: %w", classify(err))
	}
	out := make([]*bus.InboundMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil {
			continue
		}
		out = append(out, toInbound(m))
	}
	return out, nil
}

// AddReaction reacts to a message with a unicode emoji.
func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add discord reaction: %w", classify(err))
	}
	return nil
}

func (d *Discord) guildChannels(guildID string) ([]*discordgo.Channel, error) {
	if g, err := d.session.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
		return g.Channels, nil
	}
	channels, err := d.session.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", classify(err))
	}
	return channels, nil
}

func isTextChannel(c *discordgo.Channel) bool {
	return c.Type == discordgo.ChannelTypeGuildText || c.Type == discordgo.ChannelTypeGuildNews
}

// classify maps discordgo REST failures onto the package sentinels.
func classify(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, rest.Message.Message)
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %s", ErrNotFound, rest.Message.Message)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}
	return err
}

func toInbound(m *discordgo.Message) *bus.InboundMessage {
	msg := &bus.InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.Author = bus.Author{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.GlobalName,
			AvatarURL:   m.Author.AvatarURL(""),
			Bot:         m.Author.Bot,
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		msg.Author.DisplayName = m.Member.Nick
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, bus.Attachment{Filename: a.Filename, URL: a.URL})
	}
	if m.MessageReference != nil {
		msg.ReplyTo = m.MessageReference.MessageID
	}
	return msg
}

func toDiscordEmbed(e *bus.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: truncate(e.Description, 4096),
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	if e.Author != nil {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL, URL: e.Author.URL}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
