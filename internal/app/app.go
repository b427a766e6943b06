package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/config"
	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/gateway/suggest"
	"github.com/vovakirdan/lingorelay/internal/gateway/translate"
	"github.com/vovakirdan/lingorelay/internal/metrics"
	"github.com/vovakirdan/lingorelay/internal/moderation"
	"github.com/vovakirdan/lingorelay/internal/store"
	"github.com/vovakirdan/lingorelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/lingorelay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	historyMode, err := core.ParseHistoryMode(cfg.Relay.HistoryMode)
	if err != nil {
		return nil, err
	}

	// Initialize database store
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if err := seedKnowledge(cfg.Knowledge.SeedFile, st, logger); err != nil {
		st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := core.Deps{
		Registry: core.NewRegistry(),
		History:  core.NewHistory(cfg.Relay.HistoryLimit),
		Metrics:  m,
		Logger:   logger,
	}

	if cfg.Translation.URL != "" {
		translator, err := translate.New(translate.Config{
			URL:     cfg.Translation.URL,
			APIKey:  cfg.Translation.APIKey,
			Timeout: cfg.Translation.Timeout,
		}, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init translator: %w", err)
		}
		deps.Translator = translator
	} else {
		logger.Warn().Msg("translation url not set, cross-language delivery will fail")
	}

	var suggester core.Suggester
	if cfg.Suggestion.URL != "" {
		client, err := suggest.New(suggest.Config{
			URL:            cfg.Suggestion.URL,
			APIKey:         cfg.Suggestion.APIKey,
			Model:          cfg.Suggestion.Model,
			MaxSuggestions: cfg.Suggestion.MaxSuggestions,
			Timeout:        cfg.Suggestion.Timeout,
		}, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init suggester: %w", err)
		}
		suggester = client
	} else {
		logger.Warn().Msg("suggestion url not set, analysis disabled")
	}
	advisor := core.NewAdvisor(st, suggester, cfg.Suggestion.Timeout, m)
	if suggester != nil {
		deps.Advisor = advisor
	}

	if len(cfg.Relay.CensoredWords) > 0 {
		censor, err := moderation.New(cfg.Relay.CensoredWords, cfg.CensorRune())
		if err != nil && !errors.Is(err, moderation.ErrNoWords) {
			st.Close()
			return nil, fmt.Errorf("init moderation: %w", err)
		}
		if censor != nil {
			deps.Censor = censor
			logger.Info().Int("words", len(cfg.Relay.CensoredWords)).Msg("moderation enabled")
		}
	}

	hub := core.NewRelay(deps, core.Options{
		HistoryMode:    historyMode,
		GatewayTimeout: cfg.Relay.GatewayTimeout,
	})

	server, err := transporthttp.NewServer(transporthttp.Deps{
		Hub:      hub,
		KB:       st,
		Analyzer: advisor,
		Gatherer: reg,
	}, cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func seedKnowledge(path string, st store.KnowledgeStore, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}
	entries, err := store.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("load knowledge seed: %w", err)
	}
	n, err := store.Seed(context.Background(), st, entries)
	if err != nil {
		return fmt.Errorf("seed knowledge: %w", err)
	}
	logger.Info().Str("path", path).Int("entries", n).Msg("knowledge base seeded")
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.hub.Run(hubCtx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
