package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/retrieval"
	"github.com/asiento-ai/asiento/internal/vector"
)

// scriptedEngine returns canned chat responses in order; an empty string
// means "fail this call".
type scriptedEngine struct {
	responses []string
	calls     int
}

func (s *scriptedEngine) Chat(_ context.Context, _ string, _ []engine.Message, _ *engine.Schema) (string, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		return "", errors.New("no scripted response left")
	}
	if s.responses[idx] == "" {
		return "", errors.New("model overloaded")
	}
	return s.responses[idx], nil
}

func (s *scriptedEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, errors.New("not an embedding backend")
}

func (s *scriptedEngine) IsRunning(_ context.Context) bool              { return true }
func (s *scriptedEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (s *scriptedEngine) HasModel(_ context.Context, _ string) bool     { return true }

// emptyStore satisfies vector.Store with no data.
type emptyStore struct{}

func (emptyStore) Dim() int                                       { return 3 }
func (emptyStore) Upsert(_ context.Context, _ vector.Chunk) error { return nil }
func (emptyStore) Delete(_ context.Context, _ string) error       { return nil }

func (emptyStore) SearchSimilar(_ context.Context, _ []float32, _ int, _ *vector.Filter) ([]vector.Scored, error) {
	return nil, nil
}

func (emptyStore) SearchHybrid(_ context.Context, _ []float32, _, _ int) (vector.HybridResult, error) {
	return vector.HybridResult{}, nil
}

func (emptyStore) Count(_ context.Context) (int, error) { return 0, nil }

func testRetriever() *retrieval.Coordinator {
	emb := embedding.NewEngine(embedding.ProviderFunc(func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}), 1)
	return retrieval.NewCoordinator(emb, emptyStore{}, 0, 0)
}

func testDoc() ledger.DocumentAnalysis {
	return ledger.DocumentAnalysis{
		VendorName: "Libreria El Sol",
		Amount:     decimal.RequireFromString("413.59"),
		Currency:   "PEN",
		Date:       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestSuggest_FirstAttemptSucceeds(t *testing.T) {
	eng := &scriptedEngine{responses: []string{balancedResponse}}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	o := NewOrchestrator(reg, testRetriever()).WithRetry(1, time.Millisecond)
	sug, err := o.Suggest(context.Background(), testDoc(), ledger.BookPurchases, Options{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if !sug.Balanced {
		t.Error("Balanced = false, want true")
	}
	if sug.Provider != "ollama-local" {
		t.Errorf("Provider = %q, want %q", sug.Provider, "ollama-local")
	}
	if eng.calls != 1 {
		t.Errorf("chat calls = %d, want 1", eng.calls)
	}
	if sug.Book != ledger.BookPurchases {
		t.Errorf("Book = %q, want %q", sug.Book, ledger.BookPurchases)
	}
	if !sug.Date.Equal(testDoc().Date) {
		t.Errorf("Date = %s, want the document date", sug.Date)
	}
	if sug.Explanation == "" || sug.Confidence == 0 {
		t.Errorf("Explanation/Confidence not carried over: %q / %v", sug.Explanation, sug.Confidence)
	}
}

func TestSuggest_RetriesThenSucceeds(t *testing.T) {
	// First call returns garbage, the single retry succeeds.
	eng := &scriptedEngine{responses: []string{"not json at all", balancedResponse}}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	o := NewOrchestrator(reg, testRetriever()).WithRetry(1, time.Millisecond)
	sug, err := o.Suggest(context.Background(), testDoc(), ledger.BookPurchases, Options{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if eng.calls != 2 {
		t.Errorf("chat calls = %d, want 2", eng.calls)
	}
	if len(sug.Lines) != 3 {
		t.Errorf("got %d lines, want 3", len(sug.Lines))
	}
}

func TestSuggest_DefaultAttemptBudget(t *testing.T) {
	o := NewOrchestrator(nil, nil)
	if o.maxRetries != 1 {
		t.Errorf("maxRetries = %d, want 1 (two attempts in total)", o.maxRetries)
	}
	if o.backoff < time.Second {
		t.Errorf("backoff = %s, want at least a second between attempts", o.backoff)
	}
}

func TestSuggest_FallsBackToSecondProvider(t *testing.T) {
	primary := &scriptedEngine{responses: []string{"", ""}}
	secondary := &scriptedEngine{responses: []string{balancedResponse}}
	reg := engine.NewRegistry(
		engine.Provider{Name: "ollama-local", Engine: primary, ChatModel: "qwen2.5"},
		engine.Provider{Name: "groq-cloud", Engine: secondary, ChatModel: "llama-3.3-70b-versatile"},
	)

	o := NewOrchestrator(reg, testRetriever()).WithRetry(1, time.Millisecond)
	sug, err := o.Suggest(context.Background(), testDoc(), ledger.BookPurchases, Options{})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2 (all attempts)", primary.calls)
	}
	if sug.Provider != "groq-cloud" {
		t.Errorf("Provider = %q, want the fallback", sug.Provider)
	}
}

func TestSuggest_AllProvidersExhausted(t *testing.T) {
	primary := &scriptedEngine{responses: []string{"", ""}}
	secondary := &scriptedEngine{responses: []string{"", ""}}
	reg := engine.NewRegistry(
		engine.Provider{Name: "ollama-local", Engine: primary},
		engine.Provider{Name: "groq-cloud", Engine: secondary},
	)

	o := NewOrchestrator(reg, testRetriever()).WithRetry(1, time.Millisecond)
	_, err := o.Suggest(context.Background(), testDoc(), ledger.BookPurchases, Options{})
	if err == nil {
		t.Fatal("expected error when both providers fail")
	}
	if !strings.Contains(err.Error(), "groq-cloud") {
		t.Errorf("error = %q, want it to name the fallback provider", err)
	}
}

func TestSuggest_UnknownProvider(t *testing.T) {
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: &scriptedEngine{}})

	o := NewOrchestrator(reg, testRetriever())
	_, err := o.Suggest(context.Background(), testDoc(), ledger.BookPurchases, Options{Provider: "anthropic"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	var notFound *engine.ProviderNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error type = %T, want *ProviderNotFoundError", err)
	}
}

func TestBuildPrompt_IncludesContext(t *testing.T) {
	rag := RAGContext{
		Document: testDoc(),
		Book:     ledger.BookPurchases,
		Retrieved: retrieval.RetrievedContext{
			Accounts: []vector.Scored{
				{Chunk: vector.Chunk{Text: "Code: 60. Account: Compras."}, Score: 0.9},
			},
			Entries: []vector.Scored{
				{Chunk: vector.Chunk{Text: "Journal entry dated 2026-02-10 in the PURCHASES book."}, Score: 0.8},
			},
		},
	}

	messages := BuildPrompt(rag)
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}

	user := messages[1].Content
	for _, want := range []string{
		"Operation book: PURCHASES.",
		"Libreria El Sol",
		"PEN 413.59",
		"[Relevant Accounts]",
		"Code: 60. Account: Compras.",
		"[Similar Past Entries]",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q", want)
		}
	}
}

func TestBuildPrompt_EmptyContext(t *testing.T) {
	rag := RAGContext{Document: testDoc(), Book: ledger.BookSales}
	messages := BuildPrompt(rag)
	user := messages[1].Content
	if strings.Contains(user, "[Relevant Accounts]") || strings.Contains(user, "[Similar Past Entries]") {
		t.Error("empty retrieval must not emit context sections")
	}
}
