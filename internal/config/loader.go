package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".relaybot", "config.json")
}

// Load reads .env (if present), the config file at path and the environment,
// in that order of increasing priority. An empty path means ConfigPath.
func Load(path string) (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()
	if path == "" {
		path = ConfigPath()
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from a specific path, overlays the process
// environment and validates the result. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
		if unknown := CheckUnknownFields(raw); len(unknown) > 0 {
			return cfg, fmt.Errorf("unknown config fields: %s", strings.Join(unknown, ", "))
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("apply config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	ApplyEnv(cfg, os.Getenv)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of cfg. Empty values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("DISCORD_TOKEN", &cfg.Discord.Token)

	str("LLM_MODEL", &cfg.LLM.Model)
	str("OPENAI_API_KEY", &cfg.Providers.OpenAI.APIKey)
	str("ANTHROPIC_API_KEY", &cfg.Providers.Anthropic.APIKey)
	str("OPENROUTER_API_KEY", &cfg.Providers.OpenRouter.APIKey)
	str("DEEPSEEK_API_KEY", &cfg.Providers.DeepSeek.APIKey)
	str("GEMINI_API_KEY", &cfg.Providers.Gemini.APIKey)

	str("TWITCH_CLIENT_ID", &cfg.Twitch.ClientID)
	str("TWITCH_CLIENT_SECRET", &cfg.Twitch.ClientSecret)
	str("TWITCH_CHANNEL", &cfg.Twitch.Channel)
	num("TWITCH_INTERVAL_SECONDS", &cfg.Twitch.IntervalS)

	str("YOUTUBE_API_KEY", &cfg.YouTube.APIKey)
	str("YOUTUBE_CHANNEL_ID", &cfg.YouTube.ChannelID)
	num("YOUTUBE_INTERVAL_SECONDS", &cfg.YouTube.IntervalS)

	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
}

func applyDefaults(cfg *Config) {
	d := DefaultConfig()
	if cfg.Discord.RequestTimeout == 0 {
		cfg.Discord.RequestTimeout = d.Discord.RequestTimeout
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = d.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if cfg.LLM.TimeoutS == 0 {
		cfg.LLM.TimeoutS = d.LLM.TimeoutS
	}
	if cfg.Twitch.IntervalS == 0 {
		cfg.Twitch.IntervalS = d.Twitch.IntervalS
	}
	if cfg.YouTube.IntervalS == 0 {
		cfg.YouTube.IntervalS = d.YouTube.IntervalS
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
}

// Save writes configuration to the default path.
func Save(cfg *Config) error {
	return SaveTo(cfg, ConfigPath())
}

// Upgrade rewrites the config file at path with any fields added since it was
// written, keeping existing values. Unknown fields are dropped. The
// environment is not consulted so secrets set there stay out of the file.
func Upgrade(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := SaveTo(cfg, path); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	return cfg, nil
}

// SaveTo writes configuration to a specific path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp"
	}
	return home
}
