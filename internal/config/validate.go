package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrMissingDiscordToken is returned when the mandatory bot token is absent.
var ErrMissingDiscordToken = errors.New("DISCORD_TOKEN not found in environment or config")

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireDiscord checks the one setting the gateway cannot start without.
func (c *Config) RequireDiscord() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return ErrMissingDiscordToken
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string

	if c.Discord.RequestTimeout < 0 {
		errs = append(errs, "discord.requestTimeout must be non-negative")
	}

	l := c.LLM
	if l.MaxTokens < 0 {
		errs = append(errs, "llm.maxTokens must be non-negative")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if l.TimeoutS < 0 {
		errs = append(errs, "llm.timeoutSeconds must be non-negative")
	}

	if c.Twitch.IntervalS < 0 {
		errs = append(errs, "twitch.intervalSeconds must be non-negative")
	}
	if (c.Twitch.ClientID == "") != (c.Twitch.ClientSecret == "") {
		errs = append(errs, "twitch.clientId and twitch.clientSecret must be set together")
	}
	if c.YouTube.IntervalS < 0 {
		errs = append(errs, "youtube.intervalSeconds must be non-negative")
	}
	if c.YouTube.StartupDelayS < 0 {
		errs = append(errs, "youtube.startupDelaySeconds must be non-negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "compact", "json", "charm":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be compact, json or charm", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}

	return errs
}

// CheckUnknownFields walks the raw config map and returns paths of any keys
// that do not correspond to known Config struct fields.
func CheckUnknownFields(raw map[string]any) []string {
	result := checkUnknownFields(raw, reflect.TypeOf(Config{}), "")
	sort.Strings(result)
	return result
}

func checkUnknownFields(data map[string]any, t reflect.Type, prefix string) []string {
	t = derefType(t)

	switch t.Kind() {
	case reflect.Map:
		// Map keys are user-defined (e.g. extra header names); check values only.
		elemType := derefType(t.Elem())
		if elemType.Kind() != reflect.Struct {
			return nil
		}
		var unknown []string
		for key, val := range data {
			if nested, ok := val.(map[string]any); ok {
				unknown = append(unknown, checkUnknownFields(nested, elemType, joinPath(prefix, key))...)
			}
		}
		return unknown

	case reflect.Struct:
		known := jsonFieldMap(t)
		var unknown []string
		for key, val := range data {
			ft, ok := known[key]
			if !ok {
				unknown = append(unknown, joinPath(prefix, key))
				continue
			}
			if nested, ok := val.(map[string]any); ok {
				unknown = append(unknown, checkUnknownFields(nested, ft, joinPath(prefix, key))...)
			}
		}
		return unknown

	default:
		return nil
	}
}

func jsonFieldMap(t reflect.Type) map[string]reflect.Type {
	m := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			m[name] = f.Type
		}
	}
	return m
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
