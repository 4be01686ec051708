// Package poller runs the scheduled provider checks and turns their snapshots
// into edge-triggered announcements.
package poller

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joebot/relaybot/internal/metrics"
	"github.com/joebot/relaybot/internal/telemetry"
)

// DefaultTimeout bounds a single tick, provider calls included.
const DefaultTimeout = 15 * time.Second

// Task is one unit of scheduled work.
type Task func(ctx context.Context)

// Runner calls a task at a fixed interval until its context ends. The first
// call happens after the startup delay; a tick that panics or overruns its
// timeout is logged and the schedule carries on.
type Runner struct {
	name         string
	interval     time.Duration
	startupDelay time.Duration
	timeout      time.Duration
	task         Task
}

// NewRunner creates a runner. A non-positive timeout selects DefaultTimeout.
func NewRunner(name string, interval, startupDelay, timeout time.Duration, task Task) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		name:         name,
		interval:     interval,
		startupDelay: startupDelay,
		timeout:      timeout,
		task:         task,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("Poller started", "poller", r.name, "interval", r.interval, "delay", r.startupDelay)

	if r.startupDelay > 0 {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped", "poller", r.name)
			return
		case <-time.After(r.startupDelay):
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped", "poller", r.name)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	ctx, corr := telemetry.WithCorrelation(ctx)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "poller", "poller.tick", attribute.String("poller", r.name))
	defer span.End()

	start := time.Now()
	defer metrics.ObserveSince(r.name, start)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Poller tick panicked", "poller", r.name, "corr", corr, "panic", rec)
			metrics.PollErrors.WithLabelValues(r.name).Inc()
		}
	}()

	slog.Debug("Poller tick", "poller", r.name, "corr", corr)
	r.task(ctx)
}
