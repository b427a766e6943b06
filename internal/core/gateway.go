//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks
package core

import (
	"context"

	"github.com/vovakirdan/lingorelay/internal/store"
)

// Translator is the translation gateway consumed by the relay.
type Translator interface {
	// Translate returns text rendered in targetLang.
	// Failures wrap ErrTranslationUnavailable.
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Suggester is the suggestion gateway consumed by the relay.
type Suggester interface {
	// Suggest returns short candidate responses to text, grounded in corpus.
	// An empty corpus yields ErrEmptyKnowledgeBase; other failures wrap ErrAnalysisFailed.
	Suggest(ctx context.Context, text string, corpus []store.KnowledgeEntry) ([]string, error)
}

// KnowledgeBase provides the corpus handed to the Suggester.
type KnowledgeBase interface {
	ListKnowledge(ctx context.Context) ([]store.KnowledgeEntry, error)
}

// Censor masks forbidden words in message text before fan-out.
type Censor interface {
	Censor(text string) string
}
