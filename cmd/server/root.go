package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/lingorelay/internal/config"
	"github.com/vovakirdan/lingorelay/internal/log"
)

var version = "dev"

var configPath string

// rootCmd runs the relay when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "lingorelay",
	Short: "Multilingual chat relay with agent response suggestions",
	Long: `lingorelay relays chat messages between participants speaking different
languages, translating each message for its recipients and suggesting
replies to support agents from a shared knowledge base.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default config.yaml or $LINGORELAY_CONFIG_DEFAULT_PATH)")
	addServeFlags(rootCmd)
}

// loadConfig resolves configuration and builds the logger it asks for.
func loadConfig(overrides config.Config) (*config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")
	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.UpdateFrom(overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return &cfg, logger, nil
}
