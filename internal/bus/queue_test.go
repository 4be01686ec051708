package bus

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatchRoutesBySubscriber(t *testing.T) {
	b := NewMessageBus()
	var got []*OutboundMessage
	b.Subscribe("discord", func(ctx context.Context, msg *OutboundMessage) error {
		got = append(got, msg)
		return nil
	})

	b.dispatch(context.Background(), &OutboundMessage{Platform: "discord", ChannelID: "1", Content: "hi"})
	b.dispatch(context.Background(), &OutboundMessage{Platform: "other", ChannelID: "1", Content: "dropped"})

	if len(got) != 1 || got[0].Content != "hi" {
		t.Fatalf("got %+v, want one message with content hi", got)
	}
}

func TestRecoverSendDropsReplyReference(t *testing.T) {
	b := NewMessageBus()
	var attempts []*OutboundMessage
	b.Subscribe("discord", func(ctx context.Context, msg *OutboundMessage) error {
		attempts = append(attempts, msg)
		if msg.ReplyTo != "" {
			return errors.New("unknown message")
		}
		return nil
	})

	b.dispatch(context.Background(), &OutboundMessage{Platform: "discord", ChannelID: "1", Content: "answer", ReplyTo: "42"})

	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	if attempts[1].ReplyTo != "" || attempts[1].Content != "answer" {
		t.Errorf("recovery attempt = %+v, want detached copy", attempts[1])
	}
}

func TestRecoverSendFallsBackToNotice(t *testing.T) {
	b := NewMessageBus()
	var last *OutboundMessage
	b.Subscribe("discord", func(ctx context.Context, msg *OutboundMessage) error {
		last = msg
		if strings.HasPrefix(msg.Content, "Sorry") {
			return nil
		}
		return errors.New("boom")
	})

	b.dispatch(context.Background(), &OutboundMessage{Platform: "discord", ChannelID: "1", Content: strings.Repeat("x", 1800)})

	if last == nil || !strings.HasPrefix(last.Content, "Sorry") {
		t.Fatalf("last attempt = %+v, want fallback notice", last)
	}
}

func TestPublishGivesUpWhenCancelled(t *testing.T) {
	b := NewMessageBus()
	for i := 0; i < cap(b.Outbound); i++ {
		if err := b.PublishOutbound(context.Background(), &OutboundMessage{Platform: "discord"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	for i := 0; i < cap(b.Inbound); i++ {
		if err := b.PublishInbound(context.Background(), &InboundMessage{ID: "x"}); err != nil {
			t.Fatalf("publish inbound %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.PublishOutbound(ctx, &OutboundMessage{Platform: "discord"}); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishOutbound on full queue = %v, want context.Canceled", err)
	}
	if err := b.PublishInbound(ctx, &InboundMessage{ID: "y"}); !errors.Is(err, context.Canceled) {
		t.Errorf("PublishInbound on full queue = %v, want context.Canceled", err)
	}
}
