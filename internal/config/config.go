package config

// Config is the root configuration for relaybot.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	LLM       LLMConfig       `json:"llm"`
	Providers ProvidersConfig `json:"providers"`
	Twitch    TwitchConfig    `json:"twitch"`
	YouTube   YouTubeConfig   `json:"youtube"`
	Responder ResponderConfig `json:"responder"`
	Metrics   MetricsConfig   `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	Token string `json:"token"`
	// RequestTimeout bounds each REST call, in seconds.
	RequestTimeout int `json:"requestTimeout"`
}

// LLMConfig holds generation parameters shared by every provider.
type LLMConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TimeoutS    int     `json:"timeoutSeconds"`
}

// ProvidersConfig holds LLM provider settings.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Gemini     ProviderConfig `json:"gemini"`
}

// ProviderConfig holds a single LLM provider's credentials.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// TwitchConfig holds live-stream poller settings.
type TwitchConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Channel      string `json:"channel"`
	IntervalS    int    `json:"intervalSeconds"`
}

// YouTubeConfig holds video-upload poller settings.
type YouTubeConfig struct {
	APIKey        string `json:"apiKey"`
	ChannelID     string `json:"channelId"`
	ChannelName   string `json:"channelName"`
	IntervalS     int    `json:"intervalSeconds"`
	StartupDelayS int    `json:"startupDelaySeconds"`
}

// ResponderConfig toggles the opportunistic responder.
type ResponderConfig struct {
	Disabled bool `json:"disabled"`
}

// MetricsConfig holds the optional metrics/health HTTP listener.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// LoggingConfig selects log format and level.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{RequestTimeout: 15},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.9,
			TimeoutS:    30,
		},
		Twitch: TwitchConfig{
			Channel:   "duckyduckdotcom",
			IntervalS: 120,
		},
		YouTube: YouTubeConfig{
			ChannelName:   "Ducky",
			IntervalS:     180,
			StartupDelayS: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "compact",
		},
	}
}

// ProviderMatch holds a matched provider config and its name.
type ProviderMatch struct {
	Name   string
	Config *ProviderConfig
	// ByModel is set when the configured model named this provider.
	ByModel bool
}

// GetProvider returns the first provider config with an API key set,
// matching by model keyword if possible.
func (c *Config) GetProvider() *ProviderMatch {
	model := c.LLM.Model

	providers := []struct {
		name     string
		keywords []string
		config   *ProviderConfig
	}{
		{"anthropic", []string{"anthropic", "claude"}, &c.Providers.Anthropic},
		{"openai", []string{"openai", "gpt"}, &c.Providers.OpenAI},
		{"openrouter", []string{"openrouter"}, &c.Providers.OpenRouter},
		{"deepseek", []string{"deepseek"}, &c.Providers.DeepSeek},
		{"gemini", []string{"gemini"}, &c.Providers.Gemini},
	}

	for _, p := range providers {
		for _, kw := range p.keywords {
			if containsIgnoreCase(model, kw) && p.config.APIKey != "" {
				return &ProviderMatch{Name: p.name, Config: p.config, ByModel: true}
			}
		}
	}

	// Fallback: first with API key
	for _, p := range providers {
		if p.config.APIKey != "" {
			return &ProviderMatch{Name: p.name, Config: p.config}
		}
	}

	return nil
}

// Feature describes whether an optional capability is available.
type Feature struct {
	Name    string
	Enabled bool
	Missing string
}

// Features reports the optional capabilities and which setting disables each.
func (c *Config) Features() []Feature {
	return []Feature{
		{Name: "Generative replies", Enabled: c.GetProvider() != nil, Missing: "an LLM provider API key"},
		{Name: "Twitch live alerts", Enabled: c.Twitch.ClientID != "" && c.Twitch.ClientSecret != "" && c.Twitch.Channel != "", Missing: "TWITCH_CLIENT_ID / TWITCH_CLIENT_SECRET"},
		{Name: "YouTube upload alerts", Enabled: c.YouTube.APIKey != "" && c.YouTube.ChannelID != "", Missing: "YOUTUBE_API_KEY / YOUTUBE_CHANNEL_ID"},
		{Name: "Metrics endpoint", Enabled: c.Metrics.Addr != "", Missing: "METRICS_ADDR"},
	}
}
