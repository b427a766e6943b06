package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "LINGORELAY"
	envConfigDefaultPath = envPrefix + "_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, .env and env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so env vars can override keys absent from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	defaults := map[string]any{
		"addr":                       cfg.Addr,
		"read_header_timeout":        cfg.ReadHeaderTimeout,
		"shutdown_timeout":           cfg.ShutdownTimeout,
		"log_level":                  cfg.LogLevel,
		"log_format":                 cfg.LogFormat,
		"database_path":              cfg.DatabasePath,
		"allowed_origins":            cfg.AllowedOrigins,
		"ws.read_limit":              cfg.WS.ReadLimit,
		"ws.event_buffer":            cfg.WS.EventBuffer,
		"ws.rate_per_second":         cfg.WS.RatePerSecond,
		"ws.rate_burst":              cfg.WS.RateBurst,
		"relay.history_mode":         cfg.Relay.HistoryMode,
		"relay.history_limit":        cfg.Relay.HistoryLimit,
		"relay.gateway_timeout":      cfg.Relay.GatewayTimeout,
		"relay.censored_words":       cfg.Relay.CensoredWords,
		"relay.censor_char":          cfg.Relay.CensorChar,
		"translation.url":            cfg.Translation.URL,
		"translation.api_key":        cfg.Translation.APIKey,
		"translation.timeout":        cfg.Translation.Timeout,
		"suggestion.url":             cfg.Suggestion.URL,
		"suggestion.api_key":         cfg.Suggestion.APIKey,
		"suggestion.model":           cfg.Suggestion.Model,
		"suggestion.max_suggestions": cfg.Suggestion.MaxSuggestions,
		"suggestion.timeout":         cfg.Suggestion.Timeout,
		"knowledge.seed_file":        cfg.Knowledge.SeedFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
