package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joebot/relaybot/internal/cli"
	"github.com/joebot/relaybot/internal/command"
	"github.com/joebot/relaybot/internal/llm"
)

func askCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the configured LLM from the terminal",
		Long:  "Opens an interactive console against the same provider and prompt the !ask chat command uses. With -m, asks a single question and prints the answer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The TUI owns the terminal.
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

			provider, err := llm.New(cfg)
			if errors.Is(err, llm.ErrNoProvider) {
				fmt.Println()
				fmt.Println(cli.ErrStyle.Render("  Error: No API key configured"))
				fmt.Println(cli.DimStyle.Render("  Set one in " + configPathOrDefault() + " under providers, or export OPENAI_API_KEY"))
				fmt.Println()
				return err
			}
			if err != nil {
				return err
			}
			gen := llm.NewGenerator(provider, cfg.LLM)
			chatCfg := cli.ChatConfig{Model: gen.Model(), System: command.AskSystem}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if message != "" {
				return cli.RunSingleMessage(ctx, gen, chatCfg, message)
			}
			return cli.RunChat(ctx, gen, chatCfg)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "ask a single question and exit")
	return cmd
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	return "~/.relaybot/config.json"
}
