package cli

import (
	"fmt"
	"os"

	"github.com/joebot/relaybot/internal/config"
)

// RunStatus displays the current configuration status with styled output.
func RunStatus(cfg *config.Config) {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("  %s relaybot Status", Logo)))
	fmt.Println()

	fmt.Printf("  %-12s %s  %s\n", "Config", StatusBadge(fileExists(cfgPath)), DimStyle.Render(cfgPath))
	fmt.Printf("  %-12s %s\n", "Discord", StatusBadge(cfg.Discord.Token != ""))
	fmt.Printf("  %-12s %s\n", "Model", cfg.LLM.Model)
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Providers"))
	providers := []struct {
		name   string
		config config.ProviderConfig
	}{
		{"Anthropic", cfg.Providers.Anthropic},
		{"OpenAI", cfg.Providers.OpenAI},
		{"OpenRouter", cfg.Providers.OpenRouter},
		{"DeepSeek", cfg.Providers.DeepSeek},
		{"Gemini", cfg.Providers.Gemini},
	}
	active := cfg.GetProvider()
	for _, p := range providers {
		line := fmt.Sprintf("    %s  %s", StatusBadge(p.config.APIKey != ""), p.name)
		if active != nil && active.Config.APIKey == p.config.APIKey && p.config.APIKey != "" {
			line += DimStyle.Render("  (active)")
		}
		fmt.Println(line)
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Features"))
	for _, f := range cfg.Features() {
		line := fmt.Sprintf("    %s  %s", StatusBadge(f.Enabled), f.Name)
		if !f.Enabled {
			line += DimStyle.Render("  needs " + f.Missing)
		}
		fmt.Println(line)
	}
	fmt.Println()

	fmt.Println("  " + BoldStyle.Render("Sources"))
	fmt.Printf("    %-10s %s %s\n", "Twitch", cfg.Twitch.Channel, DimStyle.Render(fmt.Sprintf("every %ds", cfg.Twitch.IntervalS)))
	ytChannel := cfg.YouTube.ChannelID
	if ytChannel == "" {
		ytChannel = "-"
	}
	fmt.Printf("    %-10s %s %s\n", "YouTube", ytChannel, DimStyle.Render(fmt.Sprintf("every %ds", cfg.YouTube.IntervalS)))
	fmt.Println()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
