package vector

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage with brute-force cosine search
// backed by SQLite. It is the default backend; deployments with large
// charts or long histories should switch to the pgvector backend.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The semantic_chunks table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB, dim int) *SQLiteStore {
	return &SQLiteStore{db: db, dim: dim}
}

// Dim returns the configured embedding dimension.
func (s *SQLiteStore) Dim() int { return s.dim }

// Upsert inserts or replaces the chunk keyed by source_id.
func (s *SQLiteStore) Upsert(ctx context.Context, c Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO semantic_chunks (id, source_id, kind, text_chunk, embedding, content_hash, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			text_chunk = excluded.text_chunk,
			embedding = excluded.embedding,
			content_hash = excluded.content_hash,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		c.ID, c.SourceID, c.Kind, c.Text, encodeFloat32s(c.Embedding), c.ContentHash,
		boolToInt(c.Active), createdAt.Format(time.RFC3339), updatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", c.SourceID, err)
	}
	return nil
}

// Delete removes the chunk with the given source id. Deleting a missing
// id is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, sourceID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM semantic_chunks WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting chunk %s: %w", sourceID, err)
	}
	return nil
}

// idScore holds only the ID and score during the scan phase of search.
// Full chunk details are fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// SearchSimilar performs a brute-force cosine scan over all chunks
// matching the filter, returning the top-K most similar.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, vec []float32, limit int, filter *Filter) ([]Scored, error) {
	if limit <= 0 {
		return nil, nil
	}

	where, args := filterClause(filter)

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding FROM semantic_chunks"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vec)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vec, buf, queryNorm)
		if h.Len() < limit {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full chunks only for the top-K IDs.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	queryArgs := make([]any, len(topIDs))
	for i, id := range topIDs {
		queryArgs[i] = id
	}
	fullQuery := `SELECT id, source_id, kind, text_chunk, embedding, content_hash, active, created_at, updated_at
		FROM semantic_chunks WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K chunks: %w", err)
	}
	defer fullRows.Close()

	var results []Scored
	for fullRows.Next() {
		c, err := scanChunk(fullRows)
		if err != nil {
			return nil, err
		}
		results = append(results, Scored{Chunk: c, Score: scores[c.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full chunks: %w", err)
	}

	// Sort results by score descending (IN query doesn't preserve order).
	sortByScore(results)

	return results, nil
}

// SearchHybrid runs the account and entry retrievals as two independent
// searches over the same query vector.
func (s *SQLiteStore) SearchHybrid(ctx context.Context, vec []float32, accountLimit, entryLimit int) (HybridResult, error) {
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
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM semantic_chunks").Scan(&count)
	return count, err
}

func filterClause(filter *Filter) (string, []any) {
	if filter == nil {
		return "", nil
	}
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.ActiveOnly {
		conds = append(conds, "active = 1")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (Chunk, error) {
	var c Chunk
	var blob []byte
	var active int
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.SourceID, &c.Kind, &c.Text, &blob, &c.ContentHash, &active, &createdAt, &updatedAt); err != nil {
		return Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
	}
	c.Embedding = embedding
	c.Active = active != 0
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Chunk{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Chunk{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// sortByScore sorts Scored chunks by score descending. Used for small
// slices (topK).
func sortByScore(results []Scored) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided
// buffer, reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score. Used during
// the scan phase of SearchSimilar to track top-K candidates by ID only.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
