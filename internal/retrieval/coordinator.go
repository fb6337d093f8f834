package retrieval

import (
	"context"
	"fmt"

	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/vector"
)

// Default result limits for the two retrieval channels.
const (
	DefaultAccountLimit = 5
	DefaultEntryLimit   = 3
)

// RetrievedContext is everything retrieval produced for one query: the
// matching active accounts, similar historical entries, and the query
// itself with its embedding for downstream reuse.
type RetrievedContext struct {
	Query          string
	QueryEmbedding []float32
	Accounts       []vector.Scored
	Entries        []vector.Scored
}

// Coordinator embeds queries and runs the hybrid account/entry search.
type Coordinator struct {
	embedder     *embedding.Engine
	store        vector.Store
	accountLimit int
	entryLimit   int
}

// NewCoordinator creates a Coordinator. Limits <= 0 fall back to the
// package defaults.
func NewCoordinator(embedder *embedding.Engine, store vector.Store, accountLimit, entryLimit int) *Coordinator {
	if accountLimit <= 0 {
		accountLimit = DefaultAccountLimit
	}
	if entryLimit <= 0 {
		entryLimit = DefaultEntryLimit
	}
	return &Coordinator{
		embedder:     embedder,
		store:        store,
		accountLimit: accountLimit,
		entryLimit:   entryLimit,
	}
}

// Retrieve embeds the query and returns both retrieval channels. An empty
// index yields an empty context, not an error; the caller decides whether
// to proceed without grounding.
func (c *Coordinator) Retrieve(ctx context.Context, query string) (RetrievedContext, error) {
	vec, err := c.embedder.Generate(ctx, query)
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("embedding query: %w", err)
	}

	result, err := c.store.SearchHybrid(ctx, vec, c.accountLimit, c.entryLimit)
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("searching index: %w", err)
	}

	return RetrievedContext{
		Query:          query,
		QueryEmbedding: vec,
		Accounts:       result.Accounts,
		Entries:        result.Entries,
	}, nil
}
