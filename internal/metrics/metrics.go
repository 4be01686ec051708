// Package metrics exposes Prometheus counters for relays, notifications,
// polling and generated replies, plus a small HTTP listener serving them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Relays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_relays_total",
		Help: "Messages relayed to a target channel, by rule",
	}, []string{"rule"})
	RelayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_relay_failures_total",
		Help: "Relays aborted because a send failed, by rule",
	}, []string{"rule"})
	DeleteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_delete_failures_total",
		Help: "Failed deletes of relayed originals, by reason",
	}, []string{"reason"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_notifications_total",
		Help: "Announcements posted to notification channels, by source",
	}, []string{"source"})
	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_poll_errors_total",
		Help: "Poll cycles that produced no data because of an error, by poller",
	}, []string{"poller"})
	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaybot_poll_duration_seconds",
		Help:    "Duration of a poll tick, by poller",
		Buckets: prometheus.DefBuckets,
	}, []string{"poller"})
	Live = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaybot_stream_live",
		Help: "1 while the watched stream is known to be live",
	})

	ResponderReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaybot_responder_replies_total",
		Help: "Opportunistic replies sent",
	})
	ResponderSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_responder_skips_total",
		Help: "Opportunistic attempts abandoned after the probability gate, by reason",
	}, []string{"reason"})

	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybot_commands_total",
		Help: "Command invocations, by command and outcome",
	}, []string{"command", "outcome"})
)

// SetLive records the current live flag.
func SetLive(live bool) {
	if live {
		Live.Set(1)
	} else {
		Live.Set(0)
	}
}

// ObserveSince records the time elapsed since start for a poller.
func ObserveSince(poller string, start time.Time) {
	PollDuration.WithLabelValues(poller).Observe(time.Since(start).Seconds())
}

// Handler serves /metrics and /healthz.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs Handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown", "err", err)
		}
	}()

	slog.Info("Metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
