package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/asiento-ai/asiento/internal/chunk"
	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/vector"
)

// SyncUnsyncedEntries embeds and indexes every journal entry whose synced
// flag is clear. Failure semantics match SyncUnsyncedAccounts.
func (s *Syncer) SyncUnsyncedEntries(ctx context.Context) (Result, error) {
	res := newResult()

	var entries []ledger.JournalEntry
	err := s.resumer.Resume(ctx, func() error {
		var err error
		entries, err = s.store.FindUnsyncedEntries()
		return err
	})
	if err != nil {
		res.FinishedAt = time.Now().UTC()
		return res, fmt.Errorf("loading unsynced entries: %w", err)
	}
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, e := range entries {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			err := s.syncEntry(gCtx, e)
			mu.Lock()
			defer mu.Unlock()
			res.Processed++
			if err == nil {
				res.Succeeded++
				return nil
			}
			if fatal(err) {
				return err
			}
			s.logger.Warn("entry sync failed", "entry_id", e.ID, "error", err)
			res.Errors[e.ID] = err
			res.Failed++
			return nil
		})
	}

	batchErr := g.Wait()
	res.FinishedAt = time.Now().UTC()
	if batchErr != nil {
		return res, fmt.Errorf("entry sync aborted: %w", batchErr)
	}

	s.logger.Info("entry sync finished",
		"processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// ForceResyncAllEntries clears every entry's synced flag and runs a full sync.
func (s *Syncer) ForceResyncAllEntries(ctx context.Context) (Result, error) {
	err := s.resumer.Resume(ctx, func() error {
		return s.store.MarkAllEntriesUnsynced()
	})
	if err != nil {
		return newResult(), fmt.Errorf("clearing entry sync flags: %w", err)
	}
	return s.SyncUnsyncedEntries(ctx)
}

// SyncEntry indexes a single entry by id, regardless of its synced flag.
func (s *Syncer) SyncEntry(ctx context.Context, id int64) error {
	var entry ledger.JournalEntry
	err := s.resumer.Resume(ctx, func() error {
		var err error
		entry, err = s.store.FindEntryByID(id)
		return err
	})
	if err != nil {
		return fmt.Errorf("loading entry %d: %w", id, err)
	}
	return s.syncEntry(ctx, entry)
}

// OnEntrySaved syncs a freshly saved entry when auto-sync is enabled. A sync
// failure is logged, not returned: the entry stays flagged unsynced and the
// next batch picks it up.
func (s *Syncer) OnEntrySaved(ctx context.Context, id int64) {
	if !s.AutoSync() {
		return
	}
	if err := s.SyncEntry(ctx, id); err != nil {
		s.logger.Warn("auto-sync failed", "entry_id", id, "error", err)
	}
}

func (s *Syncer) syncEntry(ctx context.Context, e ledger.JournalEntry) error {
	text := chunk.Entry(e)

	vec, err := s.embedder.Generate(ctx, text)
	if err != nil {
		return err
	}
	if want := s.vectors.Dim(); len(vec) != want {
		return &embedding.DimensionError{Want: want, Got: len(vec)}
	}

	c := vector.Chunk{
		ID:          uuid.NewString(),
		SourceID:    vector.EntrySourceID(e.ID),
		Kind:        vector.KindEntry,
		Text:        text,
		Embedding:   vec,
		ContentHash: contentHash(text),
		Active:      true,
	}
	if err := s.vectors.Upsert(ctx, c); err != nil {
		return err
	}

	return s.resumer.Resume(ctx, func() error {
		return s.store.MarkEntrySynced(e.ID)
	})
}
