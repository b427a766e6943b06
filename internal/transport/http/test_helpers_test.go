package http

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/config"
	"github.com/vovakirdan/lingorelay/internal/core"
	"github.com/vovakirdan/lingorelay/internal/metrics"
	"github.com/vovakirdan/lingorelay/internal/store"
	"github.com/vovakirdan/lingorelay/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store seeded with entries.
func createTestStore(t *testing.T, entries ...store.KnowledgeEntry) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if _, err := store.Seed(context.Background(), st, entries); err != nil {
		t.Fatalf("seed test store: %v", err)
	}
	return st
}

type prefixTranslator struct{}

func (prefixTranslator) Translate(_ context.Context, text, target string) (string, error) {
	if target == "xx" {
		return "", core.ErrTranslationUnavailable
	}
	return "[" + target + "] " + text, nil
}

type stubAnalyzer struct {
	suggestions []string
	err         error
}

func (s stubAnalyzer) Analyze(context.Context, string) ([]string, error) {
	return s.suggestions, s.err
}

type stubSuggester struct{ out []string }

func (s stubSuggester) Suggest(_ context.Context, _ string, corpus []store.KnowledgeEntry) ([]string, error) {
	if len(corpus) == 0 {
		return nil, core.ErrEmptyKnowledgeBase
	}
	return s.out, nil
}

var errStoreDown = errors.New("store down")

type brokenKB struct{}

func (brokenKB) ListKnowledge(context.Context) ([]store.KnowledgeEntry, error) {
	return nil, errStoreDown
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.AllowedOrigins = []string{"http://allowed.example"}
	cfg.WS.RatePerSecond = 0
	return &cfg
}

// startTestServer runs a relay with a translator and a seeded knowledge base behind httptest.
func startTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	st := createTestStore(t, store.KnowledgeEntry{Topic: "refunds", Content: "Refunds take 5 days."})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	advisor := core.NewAdvisor(st, stubSuggester{out: []string{"Offer a refund"}}, time.Second, m)

	relay := core.NewRelay(core.Deps{
		Translator: prefixTranslator{},
		Advisor:    advisor,
		Metrics:    m,
		Logger:     &logger,
	}, core.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go relay.Run(ctx)
	t.Cleanup(cancel)

	server, err := NewServer(Deps{Hub: relay, KB: st, Analyzer: advisor, Gatherer: reg}, cfg, &logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}
