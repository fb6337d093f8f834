// Package vector defines the vector-store port used by the sync and
// retrieval layers, plus its two backends: SQLite with brute-force
// cosine search (default) and Postgres with pgvector.
package vector

import (
	"context"
	"fmt"
	"time"
)

// Chunk kinds stored in the index.
const (
	KindAccount = "account"
	KindEntry   = "journal_entry"
)

// AccountSourceID builds the stable source id for an account chunk.
func AccountSourceID(id int64) string { return fmt.Sprintf("account:%d", id) }

// EntrySourceID builds the stable source id for a journal-entry chunk.
func EntrySourceID(id int64) string { return fmt.Sprintf("entry:%d", id) }

// Chunk is one indexed text+vector pair with provenance. Chunks are
// replaced wholesale on re-sync (upsert by SourceID), never mutated in
// place.
type Chunk struct {
	ID          string
	SourceID    string
	Kind        string
	Text        string
	Embedding   []float32
	ContentHash string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Scored is a Chunk with its similarity score in [0, 1].
type Scored struct {
	Chunk
	Score float32
}

// Filter restricts a similarity search by chunk metadata.
type Filter struct {
	Kind       string
	ActiveOnly bool
}

// HybridResult bundles the two independent retrievals of a hybrid
// search.
type HybridResult struct {
	Accounts []Scored
	Entries  []Scored
}

// UnavailableError wraps a backend connectivity failure. Callers decide
// retry policy.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return fmt.Sprintf("vector store unavailable: %v", e.Err) }
func (e *UnavailableError) Unwrap() error { return e.Err }

// Store is the vector-store port. All writes are idempotent: Upsert
// replaces by SourceID and Delete of a missing id is not an error, so
// concurrent syncs and retries are safe to repeat.
type Store interface {
	// Dim returns the configured embedding dimension. Chunks with a
	// different embedding length indicate a configuration fault.
	Dim() int

	// Upsert inserts or replaces the chunk keyed by SourceID.
	Upsert(ctx context.Context, c Chunk) error

	// Delete removes the chunk with the given source id, if present.
	Delete(ctx context.Context, sourceID string) error

	// SearchSimilar returns the top-K chunks by cosine similarity,
	// optionally filtered by metadata. filter may be nil.
	SearchSimilar(ctx context.Context, vec []float32, limit int, filter *Filter) ([]Scored, error)

	// SearchHybrid runs two independent retrievals (active accounts and
	// historical entries) and returns both result sets.
	SearchHybrid(ctx context.Context, vec []float32, accountLimit, entryLimit int) (HybridResult, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)
}
