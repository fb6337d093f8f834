package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/ledger"
	"github.com/asiento-ai/asiento/internal/retrieval"
)

const (
	defaultMaxRetries = 1
	defaultBackoff    = 2 * time.Second
)

// Options tunes a single suggestion request.
type Options struct {
	// Provider selects the inference provider by (partial) name. Empty
	// means the registry default.
	Provider string
	// QueryOverride replaces the derived retrieval query.
	QueryOverride string
}

// Orchestrator runs the retrieve-prompt-parse loop against the provider
// registry, retrying transient failures and falling back to the second
// provider when the first is exhausted.
type Orchestrator struct {
	registry   *engine.Registry
	retriever  *retrieval.Coordinator
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	noFallback bool
}

// NewOrchestrator creates an Orchestrator with default retry settings.
func NewOrchestrator(registry *engine.Registry, retriever *retrieval.Coordinator) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		retriever:  retriever,
		logger:     slog.Default(),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
}

// WithFallback controls whether an exhausted provider is retried on the
// alternate one. Enabled by default.
func (o *Orchestrator) WithFallback(enabled bool) *Orchestrator {
	o.noFallback = !enabled
	return o
}

// WithRetry overrides the retry count and backoff between attempts.
// Intended for tests and CLI flags.
func (o *Orchestrator) WithRetry(maxRetries int, backoff time.Duration) *Orchestrator {
	o.maxRetries = maxRetries
	o.backoff = backoff
	return o
}

// Suggest produces a journal-entry suggestion for the document. Retrieval
// runs once; the inference call is retried per provider and falls back to
// the alternate provider before giving up.
func (o *Orchestrator) Suggest(ctx context.Context, doc ledger.DocumentAnalysis, book ledger.BookType, opts Options) (Suggestion, error) {
	provider, err := o.registry.Get(opts.Provider)
	if err != nil {
		return Suggestion{}, err
	}

	query := retrieval.BuildQuery(doc, book, opts.QueryOverride)
	retrieved, err := o.retriever.Retrieve(ctx, query)
	if err != nil {
		return Suggestion{}, fmt.Errorf("retrieving context: %w", err)
	}

	rag := RAGContext{Document: doc, Book: book, Retrieved: retrieved}

	sug, err := o.tryProvider(ctx, provider, rag)
	if err == nil {
		return sug, nil
	}

	if o.noFallback {
		return Suggestion{}, err
	}
	fallback, ok := o.registry.Fallback(provider.Name)
	if !ok {
		return Suggestion{}, err
	}
	o.logger.Warn("provider exhausted, trying fallback",
		"provider", provider.Name, "fallback", fallback.Name, "error", err)

	sug, fbErr := o.tryProvider(ctx, fallback, rag)
	if fbErr != nil {
		return Suggestion{}, fmt.Errorf("fallback %s failed after %s: %w", fallback.Name, provider.Name, fbErr)
	}
	return sug, nil
}

// tryProvider makes at most 1+maxRetries attempts against one provider with
// a fixed backoff between them. Both chat failures and malformed responses
// count as retryable.
func (o *Orchestrator) tryProvider(ctx context.Context, p engine.Provider, rag RAGContext) (Suggestion, error) {
	messages := BuildPrompt(rag)

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Suggestion{}, ctx.Err()
			case <-time.After(o.backoff):
			}
		}

		raw, err := p.Engine.Chat(ctx, p.ChatModel, messages, responseSchema())
		if err != nil {
			lastErr = fmt.Errorf("chat: %w", err)
			o.logger.Warn("suggestion chat failed", "provider", p.Name, "attempt", attempt, "error", err)
			continue
		}

		sug, err := Parse(raw)
		if err != nil {
			lastErr = err
			o.logger.Warn("suggestion parse failed", "provider", p.Name, "attempt", attempt, "error", err)
			continue
		}

		sug.Provider = p.Name
		sug.Date = rag.Document.Date
		sug.Book = rag.Book
		sug.Retrieved = rag.Retrieved
		return sug, nil
	}
	return Suggestion{}, lastErr
}
