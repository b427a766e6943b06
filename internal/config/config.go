package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	WS          WSConfig          `mapstructure:"ws" yaml:"ws"`
	Relay       RelayConfig       `mapstructure:"relay" yaml:"relay"`
	Translation TranslationConfig `mapstructure:"translation" yaml:"translation"`
	Suggestion  SuggestionConfig  `mapstructure:"suggestion" yaml:"suggestion"`
	Knowledge   KnowledgeConfig   `mapstructure:"knowledge" yaml:"knowledge"`
}

// WSConfig tunes WebSocket connections.
type WSConfig struct {
	ReadLimit     string  `mapstructure:"read_limit" yaml:"read_limit"` // e.g. "64KiB"
	EventBuffer   int     `mapstructure:"event_buffer" yaml:"event_buffer"`
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"` // 0 disables limiting
	RateBurst     int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// RelayConfig tunes message fan-out.
type RelayConfig struct {
	HistoryMode    string        `mapstructure:"history_mode" yaml:"history_mode"`
	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout" yaml:"gateway_timeout"`
	CensoredWords  []string      `mapstructure:"censored_words" yaml:"censored_words"`
	CensorChar     string        `mapstructure:"censor_char" yaml:"censor_char"`
}

type TranslationConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SuggestionConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	Model          string        `mapstructure:"model" yaml:"model"`
	MaxSuggestions int           `mapstructure:"max_suggestions" yaml:"max_suggestions"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type KnowledgeConfig struct {
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "data/lingorelay.db",
		AllowedOrigins:    []string{"http://localhost:3000"},
		WS: WSConfig{
			ReadLimit:     "64KiB",
			EventBuffer:   64,
			RatePerSecond: 5,
			RateBurst:     10,
		},
		Relay: RelayConfig{
			HistoryMode:    "recipient",
			HistoryLimit:   500,
			GatewayTimeout: 5 * time.Second,
			CensorChar:     "*",
		},
		Translation: TranslationConfig{
			URL:     "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Suggestion: SuggestionConfig{
			URL:            "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			MaxSuggestions: 3,
			Timeout:        15 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.Relay.HistoryMode != "" {
		c.Relay.HistoryMode = other.Relay.HistoryMode
	}
	if other.Translation.URL != "" {
		c.Translation.URL = other.Translation.URL
	}
	if other.Suggestion.URL != "" {
		c.Suggestion.URL = other.Suggestion.URL
	}
	if other.Suggestion.Model != "" {
		c.Suggestion.Model = other.Suggestion.Model
	}
	if other.Knowledge.SeedFile != "" {
		c.Knowledge.SeedFile = other.Knowledge.SeedFile
	}
}

// ReadLimitBytes parses WS.ReadLimit.
func (c Config) ReadLimitBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.WS.ReadLimit)
	if err != nil {
		return 0, fmt.Errorf("ws.read_limit: %w", err)
	}
	return int64(n), nil
}

// CensorRune returns the first rune of Relay.CensorChar, defaulting to '*'.
func (c Config) CensorRune() rune {
	for _, r := range c.Relay.CensorChar {
		return r
	}
	return '*'
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want console or json", c.LogFormat))
	}
	if n, err := c.ReadLimitBytes(); err != nil {
		errs = append(errs, err)
	} else if n < 1024 {
		errs = append(errs, fmt.Errorf("ws.read_limit %q is below 1KiB", c.WS.ReadLimit))
	}
	if c.WS.RatePerSecond < 0 {
		errs = append(errs, errors.New("ws.rate_per_second must not be negative"))
	}
	if c.WS.RatePerSecond > 0 && c.WS.RateBurst <= 0 {
		errs = append(errs, errors.New("ws.rate_burst must be positive when rate limiting is on"))
	}
	switch strings.ToLower(c.Relay.HistoryMode) {
	case "", "recipient", "canonical":
	default:
		errs = append(errs, fmt.Errorf("relay.history_mode %q: want recipient or canonical", c.Relay.HistoryMode))
	}
	if c.Relay.HistoryLimit < 0 {
		errs = append(errs, errors.New("relay.history_limit must not be negative"))
	}
	if c.Suggestion.MaxSuggestions < 0 {
		errs = append(errs, errors.New("suggestion.max_suggestions must not be negative"))
	}
	return errors.Join(errs...)
}
