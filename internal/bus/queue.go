package bus

import (
	"context"
	"log/slog"
	"sync"
)

// OutboundHandler is a callback for outbound messages on a specific platform.
type OutboundHandler func(ctx context.Context, msg *OutboundMessage) error

// MessageBus decouples the chat platform from the triage engine using Go channels.
type MessageBus struct {
	Inbound  chan *InboundMessage
	Outbound chan *OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]OutboundHandler
}

// NewMessageBus creates a new message bus with buffered channels.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		Inbound:     make(chan *InboundMessage, 64),
		Outbound:    make(chan *OutboundMessage, 64),
		subscribers: make(map[string][]OutboundHandler),
	}
}

// PublishInbound hands a received message to the router. It gives up and
// returns ctx.Err() once ctx is cancelled.
func (b *MessageBus) PublishInbound(ctx context.Context, msg *InboundMessage) error {
	select {
	case b.Inbound <- msg:
		return nil
	case <-ctx.Done():
		slog.Warn("Inbound message dropped, shutting down", "message", msg.ID)
		return ctx.Err()
	}
}

// PublishOutbound queues a reply for delivery. It gives up and returns
// ctx.Err() once ctx is cancelled.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg *OutboundMessage) error {
	select {
	case b.Outbound <- msg:
		return nil
	case <-ctx.Done():
		slog.Warn("Outbound message dropped, shutting down", "platform", msg.Platform, "channel", msg.ChannelID)
		return ctx.Err()
	}
}

// Subscribe registers a handler for outbound messages on a specific platform.
func (b *MessageBus) Subscribe(platform string, handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[platform] = append(b.subscribers[platform], handler)
}

// DispatchOutbound reads from the outbound queue and dispatches to subscribers.
// Blocks until ctx is cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.dispatch(ctx, msg)
		}
	}
}

func (b *MessageBus) dispatch(ctx context.Context, msg *OutboundMessage) {
	b.mu.RLock()
	handlers := b.subscribers[msg.Platform]
	b.mu.RUnlock()
	if len(handlers) == 0 {
		slog.Warn("No outbound subscriber", "platform", msg.Platform)
		return
	}
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			slog.Warn("dispatch outbound failed, attempting recovery", "platform", msg.Platform, "err", err)
			b.recoverSend(ctx, h, msg)
		}
	}
}

// recoverSend tries progressively simpler messages when a send fails, and as a
// last resort posts a short notice so the user knows the reply was lost.
func (b *MessageBus) recoverSend(ctx context.Context, h OutboundHandler, original *OutboundMessage) {
	// Strategy 1: drop the embed, keep the text.
	if original.Embed != nil && original.Content != "" {
		plain := &OutboundMessage{
			Platform:  original.Platform,
			ChannelID: original.ChannelID,
			Content:   original.Content,
		}
		if err := h(ctx, plain); err == nil {
			slog.Info("recovery: sent without embed", "platform", original.Platform)
			return
		}
	}

	// Strategy 2: drop the reply reference; the referenced message may be gone.
	if original.ReplyTo != "" {
		detached := *original
		detached.ReplyTo = ""
		if err := h(ctx, &detached); err == nil {
			slog.Info("recovery: sent without reply reference", "platform", original.Platform)
			return
		}
	}

	// Strategy 3: truncate.
	if runes := []rune(original.Content); len(runes) > 1500 {
		truncated := &OutboundMessage{
			Platform:  original.Platform,
			ChannelID: original.ChannelID,
			Content:   string(runes[:1500]) + "\n\n[message truncated]",
		}
		if err := h(ctx, truncated); err == nil {
			slog.Info("recovery: sent truncated message", "platform", original.Platform)
			return
		}
	}

	fallback := &OutboundMessage{
		Platform:  original.Platform,
		ChannelID: original.ChannelID,
		Content:   "Sorry, I ran into a technical issue and couldn't deliver my response. Please try again.",
	}
	if err := h(ctx, fallback); err != nil {
		slog.Error("recovery: all strategies failed, unable to notify user", "platform", original.Platform, "err", err)
	}
}
