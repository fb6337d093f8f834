package vector

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the
// semantic_chunks table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE semantic_chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			text_chunk TEXT NOT NULL,
			embedding BLOB NOT NULL,
			content_hash TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func accountChunk(id int64, vec []float32) Chunk {
	return Chunk{
		ID:        fmt.Sprintf("c%d", id),
		SourceID:  AccountSourceID(id),
		Kind:      KindAccount,
		Text:      fmt.Sprintf("account %d", id),
		Embedding: vec,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestUpsertAndSearch(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 64)
	ctx := context.Background()

	vec := makeTestVector(64, 0.1)
	if err := s.Upsert(ctx, accountChunk(1, vec)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.SearchSimilar(ctx, vec, 1, nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", results[0].Score)
	}
	if results[0].SourceID != "account:1" {
		t.Errorf("SourceID = %q, want %q", results[0].SourceID, "account:1")
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	ctx := context.Background()

	c := accountChunk(7, makeTestVector(8, 0.5))
	if err := s.Upsert(ctx, c); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := s.Upsert(ctx, c); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (upsert must not duplicate)", count)
	}
}

func TestUpsert_ReplacesContent(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	ctx := context.Background()

	c := accountChunk(3, makeTestVector(8, 0.2))
	if err := s.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	c.Text = "replaced text"
	c.ContentHash = "new-hash"
	if err := s.Upsert(ctx, c); err != nil {
		t.Fatalf("replacing Upsert: %v", err)
	}

	results, err := s.SearchSimilar(ctx, c.Embedding, 1, nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 || results[0].Text != "replaced text" || results[0].ContentHash != "new-hash" {
		t.Errorf("chunk not replaced: %+v", results)
	}
}

func TestDelete_MissingIsNoError(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	if err := s.Delete(context.Background(), "account:9999"); err != nil {
		t.Fatalf("Delete of missing id: %v", err)
	}
}

func TestSearchSimilar_FilterByKind(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	ctx := context.Background()

	vec := makeTestVector(8, 0.3)
	if err := s.Upsert(ctx, accountChunk(1, vec)); err != nil {
		t.Fatalf("Upsert account: %v", err)
	}
	entry := Chunk{
		ID: "e1", SourceID: EntrySourceID(1), Kind: KindEntry,
		Text: "entry 1", Embedding: vec, Active: true, CreatedAt: time.Now().UTC(),
	}
	if err := s.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert entry: %v", err)
	}

	results, err := s.SearchSimilar(ctx, vec, 10, &Filter{Kind: KindEntry})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 || results[0].Kind != KindEntry {
		t.Fatalf("filtered results = %+v, want only entries", results)
	}
}

func TestSearchSimilar_ActiveOnly(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	ctx := context.Background()

	vec := makeTestVector(8, 0.3)
	inactive := accountChunk(2, vec)
	inactive.Active = false
	if err := s.Upsert(ctx, inactive); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.SearchSimilar(ctx, vec, 10, &Filter{Kind: KindAccount, ActiveOnly: true})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 (inactive filtered)", len(results))
	}
}

func TestSearchSimilar_TopKOrdering(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 4)
	ctx := context.Background()

	query := []float32{1, 0, 0, 0}
	vectors := [][]float32{
		{1, 0, 0, 0},       // identical
		{0.9, 0.1, 0, 0},   // close
		{0, 1, 0, 0},       // orthogonal
		{0.5, 0.5, 0.5, 0}, // middling
	}
	for i, v := range vectors {
		if err := s.Upsert(ctx, accountChunk(int64(i+1), v)); err != nil {
			t.Fatalf("Upsert %d: %v", i, err)
		}
	}

	results, err := s.SearchSimilar(ctx, query, 2, nil)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].SourceID != "account:1" {
		t.Errorf("best match = %s, want account:1", results[0].SourceID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted by score: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestSearchHybrid(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t), 8)
	ctx := context.Background()

	vec := makeTestVector(8, 0.4)
	for i := int64(1); i <= 3; i++ {
		if err := s.Upsert(ctx, accountChunk(i, vec)); err != nil {
			t.Fatalf("Upsert account %d: %v", i, err)
		}
	}
	for i := int64(1); i <= 2; i++ {
		entry := Chunk{
			ID: fmt.Sprintf("e%d", i), SourceID: EntrySourceID(i), Kind: KindEntry,
			Text: "entry", Embedding: vec, Active: true, CreatedAt: time.Now().UTC(),
		}
		if err := s.Upsert(ctx, entry); err != nil {
			t.Fatalf("Upsert entry %d: %v", i, err)
		}
	}

	result, err := s.SearchHybrid(ctx, vec, 2, 5)
	if err != nil {
		t.Fatalf("SearchHybrid: %v", err)
	}
	if len(result.Accounts) != 2 {
		t.Errorf("accounts = %d, want 2 (limit)", len(result.Accounts))
	}
	if len(result.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(result.Entries))
	}
	for _, a := range result.Accounts {
		if a.Kind != KindAccount {
			t.Errorf("account result has kind %q", a.Kind)
		}
	}
}
