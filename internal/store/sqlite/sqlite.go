package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/lingorelay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS knowledge (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	topic      TEXT NOT NULL UNIQUE,
	content    TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== KnowledgeStore implementation ====

// ListKnowledge returns every entry ordered by topic.
func (s *SQLiteStore) ListKnowledge(ctx context.Context) ([]store.KnowledgeEntry, error) {
	query := `
		SELECT id, topic, content, category, updated_at
		FROM knowledge
		ORDER BY topic
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	entries := make([]store.KnowledgeEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge: %w", err)
	}

	return entries, nil
}

// UpsertKnowledge inserts an entry or replaces the content of the entry with the same topic.
func (s *SQLiteStore) UpsertKnowledge(ctx context.Context, entry store.KnowledgeEntry) (*store.KnowledgeEntry, error) {
	topic := strings.TrimSpace(entry.Topic)
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	query := `
		INSERT INTO knowledge (topic, content, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, topic, entry.Content, entry.Category, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("upsert knowledge: %w", err)
	}

	return s.getKnowledge(ctx, topic)
}

// DeleteKnowledge removes the entry with the given topic.
func (s *SQLiteStore) DeleteKnowledge(ctx context.Context, topic string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE topic = ?`, topic)
	if err != nil {
		return fmt.Errorf("delete knowledge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrEntryNotFound
	}

	return nil
}

func (s *SQLiteStore) getKnowledge(ctx context.Context, topic string) (*store.KnowledgeEntry, error) {
	query := `
		SELECT id, topic, content, category, updated_at
		FROM knowledge
		WHERE topic = ?
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, topic))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*store.KnowledgeEntry, error) {
	var (
		entry     store.KnowledgeEntry
		updatedAt int64
	)
	if err := row.Scan(&entry.ID, &entry.Topic, &entry.Content, &entry.Category, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan knowledge: %w", err)
	}
	entry.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &entry, nil
}
