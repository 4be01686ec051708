package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
)

// AskSystem is the system prompt for direct questions.
const AskSystem = `You are a helpful assistant in a Discord community. Answer clearly and
concisely. Use Discord markdown where it helps.`

const (
	replySystem = `You are a friendly member of a Discord community. Write one short reply
to the message below, in a casual tone. Output only the reply text.`

	analyzeSystem = `You analyze chat messages. Describe the message's tone and intent,
summarize its main point, and note any claims worth double-checking. Be brief.`
)

func ask(d Deps) *Command {
	c := &Command{
		Name:        "ask",
		Usage:       "!ask <question>",
		Description: "Ask the AI a question",
	}
	c.Run = func(ctx context.Context, req *Request) ([]Reply, error) {
		if d.LLM == nil {
			return nil, errNoLLM
		}
		if req.Args == "" {
			return nil, usageError(c)
		}
		answer, err := d.LLM.Generate(ctx, AskSystem, req.Args)
		if err != nil {
			return nil, fmt.Errorf("the AI provider failed: %w", err)
		}
		return []Reply{{Content: answer}}, nil
	}
	return c
}

func replyTo(d Deps) *Command {
	c := &Command{
		Name:        "replyto",
		Usage:       "!replyto <message id> [instructions]",
		Description: "Have the AI reply to a message anywhere in this server",
	}
	c.Run = func(ctx context.Context, req *Request) ([]Reply, error) {
		if d.LLM == nil {
			return nil, errNoLLM
		}
		fields := strings.Fields(req.Args)
		if len(fields) == 0 {
			return nil, usageError(c)
		}
		id := fields[0]
		note := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.Args), id))
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return nil, fmt.Errorf("`%s` is not a message id", id)
		}

		target, err := findMessage(ctx, d.Platform, req.Message, id)
		if err != nil {
			return nil, err
		}
		if err := d.Platform.AddReaction(ctx, target.ChannelID, target.ID, "👀"); err != nil {
			slog.Warn("Could not react to target message", "message", target.ID, "err", err)
		}

		prompt := fmt.Sprintf("Message from %s:\n%s", target.Author.Name(), target.Content)
		if note != "" {
			prompt += "\n\nInstructions for your reply: " + note
		}
		text, err := d.LLM.Generate(ctx, replySystem, prompt)
		if err != nil {
			return nil, fmt.Errorf("the AI provider failed: %w", err)
		}

		replies := []Reply{{ChannelID: target.ChannelID, Content: text, ReplyTo: target.ID}}
		if target.ChannelID != req.Message.ChannelID {
			replies = append(replies, Reply{Content: "✅ Replied in " + channel.Mention(target.ChannelID)})
		}
		return replies, nil
	}
	return c
}

func analyze(d Deps) *Command {
	return &Command{
		Name:        "analyze",
		Usage:       "!analyze (as a reply)",
		Description: "Analyze the message you are replying to",
		Run: func(ctx context.Context, req *Request) ([]Reply, error) {
			if !req.Message.IsReply() {
				return nil, errors.New("reply to a message with `!analyze` to analyze it")
			}
			if d.LLM == nil {
				return nil, errNoLLM
			}
			target, err := d.Platform.Message(ctx, req.Message.ChannelID, req.Message.ReplyTo)
			if err != nil {
				if errors.Is(err, channel.ErrNotFound) {
					return nil, errors.New("the message you replied to no longer exists")
				}
				return nil, fmt.Errorf("couldn't fetch the message: %w", err)
			}
			if strings.TrimSpace(target.Content) == "" {
				return nil, errors.New("that message has no text to analyze")
			}
			prompt := fmt.Sprintf("Message from %s:\n%s", target.Author.Name(), target.Content)
			text, err := d.LLM.Generate(ctx, analyzeSystem, prompt)
			if err != nil {
				return nil, fmt.Errorf("the AI provider failed: %w", err)
			}
			return []Reply{{Content: "🔍 **Analysis**\n" + text}}, nil
		},
	}
}

// findMessage looks for id in the invoking channel first, then in every other
// text channel of the guild the bot can read.
func findMessage(ctx context.Context, p channel.Platform, from *bus.InboundMessage, id string) (*bus.InboundMessage, error) {
	if m, err := p.Message(ctx, from.ChannelID, id); err == nil {
		return m, nil
	}
	channels, err := p.TextChannels(from.GuildID)
	if err != nil {
		return nil, fmt.Errorf("couldn't list channels: %w", err)
	}
	for _, chID := range channels {
		if chID == from.ChannelID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := p.Message(ctx, chID, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, channel.ErrNotFound) && !errors.Is(err, channel.ErrPermissionDenied) {
			slog.Debug("Message lookup failed", "channel", chID, "err", err)
		}
	}
	return nil, fmt.Errorf("couldn't find message `%s` in this server", id)
}
