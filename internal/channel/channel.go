package channel

import (
	"context"
	"errors"

	"github.com/joebot/relaybot/internal/bus"
)

var (
	// ErrPermissionDenied means the bot lacks rights for the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound means the channel or message does not exist (or is already gone).
	ErrNotFound = errors.New("not found")
)

// Channel is the interface for chat platform integrations.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, msg *bus.OutboundMessage) error
}

// Platform is the set of chat operations the relay engine, the pollers and the
// command handlers depend on.
type Platform interface {
	Name() string
	// SelfID is the user id of the bot account; empty until connected.
	SelfID() string
	Send(ctx context.Context, msg *bus.OutboundMessage) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// FindChannel returns the id of the text channel with the given name in a guild.
	FindChannel(guildID, name string) (string, error)
	GuildIDs() []string
	TextChannels(guildID string) ([]string, error)
	Message(ctx context.Context, channelID, messageID string) (*bus.InboundMessage, error)
	// History returns up to limit recent messages, newest first.
	History(ctx context.Context, channelID string, limit int) ([]*bus.InboundMessage, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// Mention formats a channel reference the way the platform renders it.
func Mention(channelID string) string {
	return "<#" + channelID + ">"
}
