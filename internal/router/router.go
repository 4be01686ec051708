// Package router feeds inbound chat messages through triage, commands and the
// opportunistic responder.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/triage"
)

// Triager classifies a message and performs at most one relay.
type Triager interface {
	Dispatch(ctx context.Context, m *bus.InboundMessage) triage.Result
}

// CommandHandler runs the command in a message, if there is one.
type CommandHandler interface {
	Handle(ctx context.Context, m *bus.InboundMessage) bool
}

// Replier may answer a message unprompted.
type Replier interface {
	Consider(ctx context.Context, m *bus.InboundMessage) bool
}

// Router owns the inbound side of the bus.
type Router struct {
	bus       *bus.MessageBus
	triage    Triager
	commands  CommandHandler
	responder Replier

	wg sync.WaitGroup
}

// New creates a router. commands and responder may be nil.
func New(b *bus.MessageBus, t Triager, commands CommandHandler, responder Replier) *Router {
	return &Router{bus: b, triage: t, commands: commands, responder: responder}
}

// Run consumes inbound messages until ctx is cancelled, then waits for
// in-flight handlers.
func (r *Router) Run(ctx context.Context) {
	slog.Info("Router started")
	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Router stopping")
			return
		case m := <-r.bus.Inbound:
			r.Route(ctx, m)
		}
	}
}

// Route triages m on the caller's goroutine so relays happen in arrival
// order, then hands the message to the command and responder stages in the
// background.
func (r *Router) Route(ctx context.Context, m *bus.InboundMessage) triage.Result {
	res := r.triage.Dispatch(ctx, m)
	if res.Self {
		return res
	}

	if r.commands != nil {
		r.spawn(ctx, "command", func(ctx context.Context) { r.commands.Handle(ctx, m) })
	}
	if r.responder != nil && !res.Handled {
		r.spawn(ctx, "responder", func(ctx context.Context) { r.responder.Consider(ctx, m) })
	}
	return res
}

// Wait blocks until every background handler started by Route has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) spawn(ctx context.Context, stage string, fn func(context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Handler panicked", "stage", stage, "panic", rec)
			}
		}()
		fn(ctx)
	}()
}
