package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/lingorelay/internal/metrics"
	"github.com/vovakirdan/lingorelay/internal/store"
)

// Advisor produces response suggestions from the knowledge base.
// It backs both the relay's suggestion fan-out and the /analyze endpoint.
type Advisor struct {
	kb        KnowledgeBase
	suggester Suggester
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewAdvisor creates an advisor. A zero timeout leaves calls bounded only by the caller's context.
func NewAdvisor(kb KnowledgeBase, suggester Suggester, timeout time.Duration, m *metrics.Metrics) *Advisor {
	return &Advisor{kb: kb, suggester: suggester, timeout: timeout, metrics: m}
}

// Corpus returns the current knowledge corpus.
func (a *Advisor) Corpus(ctx context.Context) ([]store.KnowledgeEntry, error) {
	if a == nil || a.kb == nil {
		return nil, ErrEmptyKnowledgeBase
	}
	return a.kb.ListKnowledge(ctx)
}

// Analyze returns suggestions for text. An empty result with a nil error
// means the provider had nothing to offer.
func (a *Advisor) Analyze(ctx context.Context, text string) ([]string, error) {
	if a == nil || a.suggester == nil {
		return nil, fmt.Errorf("%w: no suggestion provider configured", ErrAnalysisFailed)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	corpus, err := a.Corpus(ctx)
	if err != nil {
		if errors.Is(err, ErrEmptyKnowledgeBase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load knowledge base: %v", ErrAnalysisFailed, err)
	}
	if len(corpus) == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	started := time.Now()
	suggestions, err := a.suggester.Suggest(ctx, text, corpus)
	a.metrics.Gateway("suggest", started, err)
	if err != nil {
		if errors.Is(err, ErrEmptyKnowledgeBase) || errors.Is(err, ErrAnalysisFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return suggestions, nil
}
