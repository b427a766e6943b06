package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Entries []KnowledgeEntry `yaml:"entries"`
}

// LoadSeedFile reads knowledge entries from a YAML document of the form
//
//	entries:
//	  - topic: refunds
//	    content: Refunds are issued within 5 business days.
func LoadSeedFile(path string) ([]KnowledgeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, e := range doc.Entries {
		if strings.TrimSpace(e.Topic) == "" || strings.TrimSpace(e.Content) == "" {
			return nil, fmt.Errorf("seed entry %d: topic and content are required", i)
		}
	}
	return doc.Entries, nil
}

// Seed upserts entries into st and returns how many were written.
func Seed(ctx context.Context, st KnowledgeStore, entries []KnowledgeEntry) (int, error) {
	for i, e := range entries {
		if _, err := st.UpsertKnowledge(ctx, e); err != nil {
			return i, fmt.Errorf("upsert %q: %w", e.Topic, err)
		}
	}
	return len(entries), nil
}
