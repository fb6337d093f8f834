package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// Compile-time check that PgStore implements Store.
var _ Store = (*PgStore)(nil)

// PgStore is the pgvector-backed Store. It relies on an ivfflat index
// with the cosine operator class; search uses the `<=>` cosine-distance
// operator and converts distance to similarity.
type PgStore struct {
	pool *pgxpool.Pool
	dim  int
}

// NewPgStore connects to Postgres, ensures the pgvector extension,
// table, and index exist, and returns the store. Connection failures
// surface as *UnavailableError.
func NewPgStore(ctx context.Context, dsn string, dim int) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("connecting to postgres: %w", err)}
	}

	s := &PgStore{pool: pool, dim: dim}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return &UnavailableError{Err: fmt.Errorf("creating vector extension: %w", err)}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS semantic_chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			text_chunk TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("creating semantic_chunks table: %w", err)
	}

	createIndex := `
		CREATE INDEX IF NOT EXISTS semantic_chunks_embedding_idx
		ON semantic_chunks
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("creating embedding index: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (s *PgStore) Close() {
	s.pool.Close()
}

// Dim returns the configured embedding dimension.
func (s *PgStore) Dim() int { return s.dim }

// Upsert inserts or replaces the chunk keyed by source_id.
func (s *PgStore) Upsert(ctx context.Context, c Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO semantic_chunks (id, source_id, kind, text_chunk, embedding, content_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_id) DO UPDATE SET
			text_chunk = EXCLUDED.text_chunk,
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.SourceID, c.Kind, c.Text, pgvector.NewVector(c.Embedding),
		c.ContentHash, c.Active, createdAt, updatedAt)
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", c.SourceID, err)
	}
	return nil
}

// Delete removes the chunk with the given source id, if present.
func (s *PgStore) Delete(ctx context.Context, sourceID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM semantic_chunks WHERE source_id = $1", sourceID); err != nil {
		return fmt.Errorf("deleting chunk %s: %w", sourceID, err)
	}
	return nil
}

// SearchSimilar returns the top-K chunks by cosine similarity. The
// score is 1 - cosine distance, clamped to [0, 1].
func (s *PgStore) SearchSimilar(ctx context.Context, vec []float32, limit int, filter *Filter) ([]Scored, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, source_id, kind, text_chunk, content_hash, active, created_at, updated_at,
			1 - (embedding <=> $1) AS score
		FROM semantic_chunks`
	args := []any{pgvector.NewVector(vec)}

	if filter != nil {
		conds := ""
		if filter.Kind != "" {
			args = append(args, filter.Kind)
			conds = fmt.Sprintf(" WHERE kind = $%d", len(args))
		}
		if filter.ActiveOnly {
			if conds == "" {
				conds = " WHERE active"
			} else {
				conds += " AND active"
			}
		}
		query += conds
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []Scored
	for rows.Next() {
		var sc Scored
		if err := rows.Scan(&sc.ID, &sc.SourceID, &sc.Kind, &sc.Text, &sc.ContentHash,
			&sc.Active, &sc.CreatedAt, &sc.UpdatedAt, &sc.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if sc.Score < 0 {
			sc.Score = 0
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}

// SearchHybrid runs the account and entry retrievals concurrently over
// the connection pool.
func (s *PgStore) SearchHybrid(ctx context.Context, vec []float32, accountLimit, entryLimit int) (HybridResult, error) {
	var result HybridResult
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := s.SearchSimilar(gCtx, vec, accountLimit, &Filter{Kind: KindAccount, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("account search: %w", err)
		}
		result.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		entries, err := s.SearchSimilar(gCtx, vec, entryLimit, &Filter{Kind: KindEntry})
		if err != nil {
			return fmt.Errorf("entry search: %w", err)
		}
		result.Entries = entries
		return nil
	})

	if err := g.Wait(); err != nil {
		return HybridResult{}, err
	}
	return result, nil
}

// Count returns the number of indexed chunks.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM semantic_chunks").Scan(&count)
	return count, err
}
