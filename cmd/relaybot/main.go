package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joebot/relaybot/internal/cli"
	"github.com/joebot/relaybot/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "relaybot",
		Short:         "Discord relay, stream alert and chat bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.relaybot/config.json)")

	root.AddCommand(runCmd())
	root.AddCommand(askCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and enabled features",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintln(os.Stderr, cli.ErrStyle.Render("  Warning: "+err.Error()))
			}
			cli.RunStatus(cfg)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunOnboard()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("%s relaybot v%s", cli.Logo, cli.Version)))
		},
	}
}

// loadConfig reads .env, then the config file, then the environment. The
// returned config is usable even when err is a validation error.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
