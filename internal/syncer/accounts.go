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

// SyncUnsyncedAccounts embeds and indexes every account whose synced flag is
// clear. Per-account failures, including an unreachable vector store, are
// recorded in the Result and the rest of the batch continues; a configuration
// fault (embedding dimension mismatch) aborts the batch and is returned as
// the error.
func (s *Syncer) SyncUnsyncedAccounts(ctx context.Context) (Result, error) {
	res := newResult()

	var accounts []ledger.Account
	err := s.resumer.Resume(ctx, func() error {
		var err error
		accounts, err = s.store.FindUnsyncedAccounts()
		return err
	})
	if err != nil {
		res.FinishedAt = time.Now().UTC()
		return res, fmt.Errorf("loading unsynced accounts: %w", err)
	}
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, a := range accounts {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			err := s.syncAccount(gCtx, a)
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
			s.logger.Warn("account sync failed", "account_id", a.ID, "code", a.Code, "error", err)
			res.Errors[a.ID] = err
			res.Failed++
			return nil
		})
	}

	batchErr := g.Wait()
	res.FinishedAt = time.Now().UTC()
	if batchErr != nil {
		return res, fmt.Errorf("account sync aborted: %w", batchErr)
	}

	s.logger.Info("account sync finished",
		"processed", res.Processed, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// ForceResyncAllAccounts clears every account's synced flag and runs a full
// sync. Used after changing the embedding model or chunk format.
func (s *Syncer) ForceResyncAllAccounts(ctx context.Context) (Result, error) {
	err := s.resumer.Resume(ctx, func() error {
		return s.store.MarkAllAccountsUnsynced()
	})
	if err != nil {
		return newResult(), fmt.Errorf("clearing account sync flags: %w", err)
	}
	return s.SyncUnsyncedAccounts(ctx)
}

// RemoveSyncedAccount drops an account's chunk from the vector store and
// clears its synced flag. The vector delete happens first so a crash between
// the two steps leaves the flag set for a retry, never a stale chunk marked
// clean.
func (s *Syncer) RemoveSyncedAccount(ctx context.Context, id int64) error {
	if err := s.vectors.Delete(ctx, vector.AccountSourceID(id)); err != nil {
		return fmt.Errorf("deleting account chunk: %w", err)
	}
	err := s.resumer.Resume(ctx, func() error {
		return s.store.MarkAccountUnsynced(id)
	})
	if err != nil {
		return fmt.Errorf("clearing account sync flag: %w", err)
	}
	return nil
}

func (s *Syncer) syncAccount(ctx context.Context, a ledger.Account) error {
	text := chunk.Account(a)

	vec, err := s.embedder.Generate(ctx, text)
	if err != nil {
		return err
	}
	if want := s.vectors.Dim(); len(vec) != want {
		return &embedding.DimensionError{Want: want, Got: len(vec)}
	}

	c := vector.Chunk{
		ID:          uuid.NewString(),
		SourceID:    vector.AccountSourceID(a.ID),
		Kind:        vector.KindAccount,
		Text:        text,
		Embedding:   vec,
		ContentHash: contentHash(text),
		Active:      a.Active,
	}
	if err := s.vectors.Upsert(ctx, c); err != nil {
		return err
	}

	return s.resumer.Resume(ctx, func() error {
		return s.store.MarkAccountSynced(a.ID)
	})
}
