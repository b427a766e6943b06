package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lingorelay/internal/app"
	"github.com/vovakirdan/lingorelay/internal/config"
)

var serveOverrides config.Config

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&serveOverrides.Addr, "addr", "", "HTTP listen address")
	f.StringVar(&serveOverrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&serveOverrides.LogFormat, "log-format", "", "log format (console or json)")
	f.StringVar(&serveOverrides.DatabasePath, "db", "", "path to the SQLite knowledge base")
	f.StringSliceVar(&serveOverrides.AllowedOrigins, "allowed-origins", nil, "allowed CORS and WebSocket origins")
	f.StringVar(&serveOverrides.Relay.HistoryMode, "history-mode", "", "history replay mode (recipient or canonical)")
	f.StringVar(&serveOverrides.Translation.URL, "translate-url", "", "translation service base URL")
	f.StringVar(&serveOverrides.Suggestion.URL, "suggest-url", "", "suggestion service base URL")
	f.StringVar(&serveOverrides.Suggestion.Model, "suggest-model", "", "suggestion model name")
	f.StringVar(&serveOverrides.Knowledge.SeedFile, "seed", "", "YAML knowledge file imported at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(serveOverrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting lingorelay")
	if err := application.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
