// Package command implements the explicitly invoked chat commands.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/metrics"
)

const (
	// Prefix starts every command invocation.
	Prefix = "!"
	// MaxMessageLen is the chat payload limit replies are chunked to.
	MaxMessageLen = 2000
)

// Request is one parsed invocation.
type Request struct {
	Name    string
	Args    string
	Message *bus.InboundMessage
}

// Reply is something a command wants posted. An empty ChannelID means the
// invoking channel.
type Reply struct {
	ChannelID string
	Content   string
	Embed     *bus.Embed
	ReplyTo   string
}

// Command is a named handler. Run's error text is shown to the invoker.
type Command struct {
	Name        string
	Usage       string
	Description string
	Run         func(ctx context.Context, req *Request) ([]Reply, error)
}

// Parse splits content into a lowercase command name and its argument text.
func Parse(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, Prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(content, Prefix)
	name, args, _ = strings.Cut(rest, " ")
	if name == "" {
		return "", "", false
	}
	if i := strings.IndexAny(name, "\n\t"); i >= 0 {
		args = name[i+1:] + " " + args
		name = name[:i]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Registry maps command names to commands and delivers their replies.
type Registry struct {
	platform string
	send     func(context.Context, *bus.OutboundMessage) error
	cmds     map[string]*Command
	order    []string
}

// NewRegistry creates a registry whose replies are handed to send.
func NewRegistry(platform string, send func(context.Context, *bus.OutboundMessage) error) *Registry {
	return &Registry{platform: platform, send: send, cmds: make(map[string]*Command)}
}

// Register adds a command, replacing any command with the same name.
func (r *Registry) Register(c *Command) {
	if _, exists := r.cmds[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.cmds[c.Name] = c
}

// Get returns a command by name, or nil if not found.
func (r *Registry) Get(name string) *Command {
	return r.cmds[name]
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.cmds[n])
	}
	return out
}

// Handle runs the command in m, if any, and reports whether one ran.
// Unknown commands are ignored.
func (r *Registry) Handle(ctx context.Context, m *bus.InboundMessage) bool {
	name, args, ok := Parse(m.Content)
	if !ok {
		return false
	}
	c := r.Get(name)
	if c == nil {
		return false
	}

	slog.Info("Command invoked", "command", name, "author", m.Author.Name(), "channel", m.ChannelID)
	replies, err := c.Run(ctx, &Request{Name: name, Args: args, Message: m})
	if err != nil {
		slog.Warn("Command failed", "command", name, "err", err)
		metrics.Commands.WithLabelValues(name, "error").Inc()
		r.deliver(ctx, m, Reply{Content: "❌ " + truncate(err.Error(), 500)})
		return true
	}

	metrics.Commands.WithLabelValues(name, "ok").Inc()
	for _, reply := range replies {
		if err := r.deliver(ctx, m, reply); err != nil {
			break
		}
	}
	return true
}

// deliver posts reply, splitting long content into several messages. The
// embed rides on the last chunk.
func (r *Registry) deliver(ctx context.Context, m *bus.InboundMessage, reply Reply) error {
	chID := reply.ChannelID
	if chID == "" {
		chID = m.ChannelID
	}
	chunks := SplitMessage(reply.Content, MaxMessageLen)
	for i, chunk := range chunks {
		out := &bus.OutboundMessage{Platform: r.platform, ChannelID: chID, Content: chunk}
		if i == 0 {
			out.ReplyTo = reply.ReplyTo
		}
		if i == len(chunks)-1 {
			out.Embed = reply.Embed
		}
		if err := r.send(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

// SplitMessage splits msg into chunks of at most maxLen runes, preferring to
// break after a newline in the second half of a chunk.
func SplitMessage(msg string, maxLen int) []string {
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func usageError(c *Command) error {
	return fmt.Errorf("usage: `%s`", c.Usage)
}
