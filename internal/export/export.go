// Package export serializes the whole decision store into one versioned
// JSON document for offline backup or transfer.
package export

import (
	"context"
	"encoding/json"
	"time"

	"afkari/internal/domain"
	"afkari/internal/store"
)

// FormatVersion tags the export envelope. It evolves independently of the
// per-record modelInfo.promptVersion.
const FormatVersion = "1.0"

type Document struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exportedAt"`
	Decisions  []domain.Decision `json:"decisions"`
}

// All reads every record and wraps it in the export envelope. The store is
// not mutated.
func All(ctx context.Context, s store.Store, now time.Time) (Document, error) {
	decisions, err := s.All(ctx)
	if err != nil {
		return Document{}, err
	}
	if decisions == nil {
		decisions = []domain.Decision{}
	}
	return Document{
		Version:    FormatVersion,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Decisions:  decisions,
	}, nil
}

// Marshal renders the document as human-readable UTF-8 JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
