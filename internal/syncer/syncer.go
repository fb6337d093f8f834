// Package syncer keeps the semantic index in step with the ledger. It embeds
// chunk renditions of accounts and journal entries, upserts them into the
// vector store, and flips the per-record synced flags in source storage.
//
// Source-of-truth reads and writes are funneled through the scheduler so they
// happen on the ledger goroutine; embedding and vector upserts run
// concurrently off it.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/vector"
)

// SourceStore abstracts the ledger storage operations the syncer needs.
type SourceStore interface {
	FindUnsyncedAccounts() ([]ledger.Account, error)
	MarkAccountSynced(id int64) error
	MarkAccountUnsynced(id int64) error
	MarkAllAccountsUnsynced() error

	FindEntryByID(id int64) (ledger.JournalEntry, error)
	FindUnsyncedEntries() ([]ledger.JournalEntry, error)
	MarkEntrySynced(id int64) error
	MarkAllEntriesUnsynced() error
}

// Resumer schedules a closure onto the ledger goroutine and waits for it.
type Resumer interface {
	Resume(ctx context.Context, fn func() error) error
}

// Syncer coordinates chunking, embedding and vector-store writes for ledger
// records.
type Syncer struct {
	store    SourceStore
	vectors  vector.Store
	embedder *embedding.Engine
	resumer  Resumer
	logger   *slog.Logger

	concurrency int

	mu       sync.Mutex
	autoSync bool
}

// New creates a Syncer. concurrency bounds parallel embedding calls per
// batch; values <= 0 default to 4.
func New(store SourceStore, vectors vector.Store, embedder *embedding.Engine, resumer Resumer, concurrency int) *Syncer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Syncer{
		store:       store,
		vectors:     vectors,
		embedder:    embedder,
		resumer:     resumer,
		logger:      slog.Default(),
		concurrency: concurrency,
	}
}

// SetAutoSync toggles immediate syncing of entries as they are saved.
func (s *Syncer) SetAutoSync(on bool) {
	s.mu.Lock()
	s.autoSync = on
	s.mu.Unlock()
}

// AutoSync reports whether immediate entry syncing is enabled.
func (s *Syncer) AutoSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSync
}

// fatal reports whether err invalidates the whole batch rather than a single
// record. Only a dimension mismatch qualifies: the configured embedding model
// and the vector index disagree, so every remaining record would fail the
// same way. Network trouble reaching the store is transient and stays
// per-record.
func fatal(err error) bool {
	var dimErr *embedding.DimensionError
	return errors.As(err, &dimErr)
}

// contentHash fingerprints chunk text for change detection.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
