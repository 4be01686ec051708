package bus

import "time"

// Author identifies who wrote an inbound message.
type Author struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	Bot         bool
}

// Name returns the best human-readable name for the author.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Attachment is a file attached to an inbound message.
type Attachment struct {
	Filename string
	URL      string
}

// InboundMessage is a message received from the chat platform.
// It is never mutated after the channel layer publishes it.
type InboundMessage struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      Author
	Content     string
	Attachments []Attachment
	Timestamp   time.Time
	// ReplyTo is the id of the message this one replies to, if any.
	ReplyTo string
}

// IsReply reports whether the message was sent as a reply to another message.
func (m *InboundMessage) IsReply() bool {
	return m.ReplyTo != ""
}

// EmbedField is a single name/value row in an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// EmbedAuthor is the attribution line at the top of an embed.
type EmbedAuthor struct {
	Name    string
	IconURL string
	URL     string
}

// Embed is a platform-neutral rich message card.
type Embed struct {
	Title        string
	URL          string
	Description  string
	Color        int
	Timestamp    time.Time
	Author       *EmbedAuthor
	Fields       []EmbedField
	ImageURL     string
	ThumbnailURL string
	Footer       string
}

// OutboundMessage is a message to send to a chat channel.
type OutboundMessage struct {
	Platform  string
	ChannelID string
	Content   string
	Embed     *Embed
	ReplyTo   string
}
