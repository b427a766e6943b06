package store

import (
	"context"
	"errors"
	"time"
)

// ErrEntryNotFound is returned when a knowledge entry does not exist.
var ErrEntryNotFound = errors.New("knowledge entry not found")

// KnowledgeEntry is one topic of the knowledge base handed to the suggestion provider.
type KnowledgeEntry struct {
	ID        int64     `json:"id" yaml:"-"`
	Topic     string    `json:"topic" yaml:"topic"`
	Content   string    `json:"content" yaml:"content"`
	Category  string    `json:"category,omitempty" yaml:"category,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// KnowledgeStore defines knowledge base operations.
type KnowledgeStore interface {
	// ListKnowledge returns every entry ordered by topic.
	ListKnowledge(ctx context.Context) ([]KnowledgeEntry, error)

	// UpsertKnowledge inserts an entry or replaces the one with the same topic.
	UpsertKnowledge(ctx context.Context, entry KnowledgeEntry) (*KnowledgeEntry, error)

	// DeleteKnowledge removes the entry with the given topic.
	DeleteKnowledge(ctx context.Context, topic string) error
}

// Store combines all storage interfaces.
type Store interface {
	KnowledgeStore

	Ping(ctx context.Context) error
	Close() error
}
