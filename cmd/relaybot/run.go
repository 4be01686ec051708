package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joebot/relaybot/internal/bus"
	"github.com/joebot/relaybot/internal/channel"
	"github.com/joebot/relaybot/internal/cli"
	"github.com/joebot/relaybot/internal/command"
	"github.com/joebot/relaybot/internal/config"
	"github.com/joebot/relaybot/internal/llm"
	"github.com/joebot/relaybot/internal/logging"
	"github.com/joebot/relaybot/internal/metrics"
	"github.com/joebot/relaybot/internal/poller"
	"github.com/joebot/relaybot/internal/responder"
	"github.com/joebot/relaybot/internal/router"
	"github.com/joebot/relaybot/internal/telemetry"
	"github.com/joebot/relaybot/internal/triage"
	"github.com/joebot/relaybot/internal/twitch"
	"github.com/joebot/relaybot/internal/youtube"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Logging.Format, cfg.Logging.Level, os.Stderr); err != nil {
				return err
			}
			if err := cfg.RequireDiscord(); err != nil {
				slog.Error("Cannot start", "err", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGateway(ctx, cfg)
		},
	}
}

func runGateway(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing("relaybot", cli.Version)
	if err != nil {
		slog.Warn("Tracing unavailable", "err", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	for _, f := range cfg.Features() {
		if !f.Enabled {
			slog.Info("Feature disabled", "feature", f.Name, "missing", f.Missing)
		}
	}

	msgBus := bus.NewMessageBus()
	discord, err := channel.NewDiscord(cfg.Discord, msgBus)
	if err != nil {
		return err
	}
	msgBus.Subscribe(discord.Name(), discord.Send)

	var gen *llm.Generator
	if provider, err := llm.New(cfg); err == nil {
		gen = llm.NewGenerator(provider, cfg.LLM)
		slog.Info("LLM ready", "model", gen.Model())
	} else if !errors.Is(err, llm.ErrNoProvider) {
		return fmt.Errorf("llm provider: %w", err)
	}

	deps := command.Deps{Platform: discord}
	var replier router.Replier
	if gen != nil {
		deps.LLM = gen
		if !cfg.Responder.Disabled {
			r := responder.New(discord, gen)
			deps.Window = r.Window()
			replier = r
		}
	}

	var runners []*poller.Runner
	alerts := poller.NewBroadcaster(discord, "")
	if cfg.Twitch.ClientID != "" && cfg.Twitch.ClientSecret != "" && cfg.Twitch.Channel != "" {
		sp := poller.NewStreamPoller(twitch.NewClient(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, nil), cfg.Twitch.Channel, alerts)
		deps.Streams = sp
		runners = append(runners, poller.NewRunner("twitch", seconds(cfg.Twitch.IntervalS), 0, 0, func(ctx context.Context) {
			sp.Poll(ctx)
		}))
	}
	if cfg.YouTube.APIKey != "" && cfg.YouTube.ChannelID != "" {
		yt, err := youtube.NewClient(ctx, cfg.YouTube.APIKey)
		if err != nil {
			return fmt.Errorf("youtube client: %w", err)
		}
		vp := poller.NewVideoPoller(yt, cfg.YouTube.ChannelID, cfg.YouTube.ChannelName, alerts)
		deps.Videos = vp
		runners = append(runners, poller.NewRunner("youtube", seconds(cfg.YouTube.IntervalS), seconds(cfg.YouTube.StartupDelayS), 0, func(ctx context.Context) {
			vp.Poll(ctx)
		}))
	}

	registry := command.NewRegistry(discord.Name(), msgBus.PublishOutbound)
	command.RegisterAll(registry, deps)
	rt := router.New(msgBus, triage.NewDispatcher(discord, triage.DistinguishedUserID), registry, replier)

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.Metrics.Addr != "" {
		spawn(func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("Metrics server failed", "err", err)
			}
		})
	}
	spawn(func() { msgBus.DispatchOutbound(ctx) })
	spawn(func() { rt.Run(ctx) })
	for _, r := range runners {
		spawn(func() { r.Run(ctx) })
	}

	slog.Info("relaybot starting", "version", cli.Version, "pollers", len(runners), "commands", len(registry.Commands()))
	err = discord.Start(ctx)
	cancel()
	stopErr := discord.Stop()
	wg.Wait()
	slog.Info("relaybot stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return stopErr
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
