package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asiento-ai/asiento/internal/embedding"
	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/intent"
	"github.com/asiento-ai/asiento/internal/retrieval"
	"github.com/asiento-ai/asiento/internal/vector"
)

// echoEngine records the last chat call and returns a fixed reply.
type echoEngine struct {
	lastUser string
	reply    string
	fail     bool
}

func (e *echoEngine) Chat(_ context.Context, _ string, messages []engine.Message, _ *engine.Schema) (string, error) {
	if e.fail {
		return "", errors.New("model unavailable")
	}
	for _, m := range messages {
		if m.Role == "user" {
			e.lastUser = m.Content
		}
	}
	return e.reply, nil
}

func (e *echoEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, errors.New("not supported")
}

func (e *echoEngine) IsRunning(_ context.Context) bool               { return true }
func (e *echoEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (e *echoEngine) HasModel(_ context.Context, _ string) bool      { return true }

// fixedStore returns the same hybrid result for every search.
type fixedStore struct {
	result vector.HybridResult
}

func (f *fixedStore) Dim() int                                       { return 3 }
func (f *fixedStore) Upsert(_ context.Context, _ vector.Chunk) error { return nil }
func (f *fixedStore) Delete(_ context.Context, _ string) error       { return nil }

func (f *fixedStore) SearchSimilar(_ context.Context, _ []float32, _ int, _ *vector.Filter) ([]vector.Scored, error) {
	return nil, nil
}

func (f *fixedStore) SearchHybrid(_ context.Context, _ []float32, _, _ int) (vector.HybridResult, error) {
	return f.result, nil
}

func (f *fixedStore) Count(_ context.Context) (int, error) { return 0, nil }

// intentProvider gives slightly off-axis vectors so example phrases and the
// matching query land near the same centroid.
func intentProvider() embedding.Provider {
	return embedding.ProviderFunc(func(_ context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "sync") || strings.Contains(text, "indexed") {
			return []float32{1, 0, 0}, nil
		}
		return []float32{0, 0, 1}, nil
	})
}

func testMatcher(t *testing.T) *intent.Matcher {
	t.Helper()
	emb := embedding.NewEngine(intentProvider(), 1)
	m := intent.NewMatcher(emb, 0.55)
	err := m.Index(context.Background(), []intent.Definition{
		{Name: "sync-status", Tool: "sync_status", Examples: []string{"sync status", "how many accounts are indexed"}},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	return m
}

func testRetriever(result vector.HybridResult) *retrieval.Coordinator {
	emb := embedding.NewEngine(intentProvider(), 1)
	return retrieval.NewCoordinator(emb, &fixedStore{result: result}, 0, 0)
}

func TestRespond_IntentDispatchesToTool(t *testing.T) {
	eng := &echoEngine{reply: "should not be called"}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	var gotTool, gotMessage string
	tools := ToolExecutorFunc(func(_ context.Context, tool, message string) (string, error) {
		gotTool, gotMessage = tool, message
		return "12 accounts indexed, 0 pending", nil
	})

	o := NewOrchestrator(testMatcher(t), reg, testRetriever(vector.HybridResult{}), tools)
	ans, err := o.Respond(context.Background(), "what is the sync status", "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if gotTool != "sync_status" {
		t.Errorf("tool = %q, want sync_status", gotTool)
	}
	if gotMessage != "what is the sync status" {
		t.Errorf("message = %q", gotMessage)
	}
	if ans.Intent != "sync-status" || ans.Tool != "sync_status" {
		t.Errorf("answer = %+v, want intent metadata set", ans)
	}
	if ans.Text != "12 accounts indexed, 0 pending" {
		t.Errorf("Text = %q", ans.Text)
	}
}

func TestRespond_ToolFailureFallsBackToChat(t *testing.T) {
	eng := &echoEngine{reply: "All accounts are indexed."}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	tools := ToolExecutorFunc(func(_ context.Context, _, _ string) (string, error) {
		return "", errors.New("store busy")
	})

	o := NewOrchestrator(testMatcher(t), reg, testRetriever(vector.HybridResult{}), tools)
	ans, err := o.Respond(context.Background(), "what is the sync status", "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if ans.Tool != "" {
		t.Errorf("Tool = %q, want empty after fallback", ans.Tool)
	}
	if ans.Text != "All accounts are indexed." {
		t.Errorf("Text = %q", ans.Text)
	}
}

func TestRespond_FreeFormIncludesRetrievedContext(t *testing.T) {
	eng := &echoEngine{reply: "Use account 65 for bank fees."}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	result := vector.HybridResult{
		Accounts: []vector.Scored{{Chunk: vector.Chunk{Text: "Code: 65. Account: Otros Gastos."}, Score: 0.7}},
	}

	o := NewOrchestrator(testMatcher(t), reg, testRetriever(result), nil)
	ans, err := o.Respond(context.Background(), "which account do I use for bank fees", "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if ans.Intent != "" {
		t.Errorf("Intent = %q, want empty for an off-topic query", ans.Intent)
	}
	if !strings.Contains(eng.lastUser, "Code: 65. Account: Otros Gastos.") {
		t.Errorf("user prompt missing retrieved context: %q", eng.lastUser)
	}
	if !strings.Contains(eng.lastUser, "which account do I use for bank fees") {
		t.Errorf("user prompt missing the original question: %q", eng.lastUser)
	}
}

func TestRespond_IntentPromptTemplateApplied(t *testing.T) {
	eng := &echoEngine{reply: "IGV is 18%."}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	emb := embedding.NewEngine(intentProvider(), 1)
	m := intent.NewMatcher(emb, 0.55)
	err := m.Index(context.Background(), []intent.Definition{
		{
			Name:     "explain-tax",
			Prompt:   "Answer as a tax advisor. Question: %s",
			Examples: []string{"sync status"}, // vectors put tax queries on this centroid
		},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	o := NewOrchestrator(m, reg, testRetriever(vector.HybridResult{}), nil)
	ans, err := o.Respond(context.Background(), "how is the sync taxed", "")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if ans.Intent != "explain-tax" {
		t.Errorf("Intent = %q, want explain-tax", ans.Intent)
	}
	if ans.Tool != "" {
		t.Errorf("Tool = %q, want empty for a prompt-only intent", ans.Tool)
	}
	want := "Answer as a tax advisor. Question: how is the sync taxed"
	if !strings.Contains(eng.lastUser, want) {
		t.Errorf("user prompt = %q, want the templated question", eng.lastUser)
	}
}

func TestApplyPromptTemplate_NoPlaceholder(t *testing.T) {
	got := applyPromptTemplate("Answer briefly.", "what is IGV")
	if !strings.HasPrefix(got, "Answer briefly.") || !strings.HasSuffix(got, "what is IGV") {
		t.Errorf("applyPromptTemplate = %q", got)
	}
}

func TestRespond_ProviderFailure(t *testing.T) {
	eng := &echoEngine{fail: true}
	reg := engine.NewRegistry(engine.Provider{Name: "ollama-local", Engine: eng, ChatModel: "qwen2.5"})

	o := NewOrchestrator(nil, reg, nil, nil)
	_, err := o.Respond(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error when the provider fails")
	}
}

func TestRespond_EmptyMessage(t *testing.T) {
	o := NewOrchestrator(nil, engine.NewRegistry(), nil, nil)
	if _, err := o.Respond(context.Background(), "   ", ""); err == nil {
		t.Fatal("expected error for empty message")
	}
}
