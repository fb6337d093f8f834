// Package embedding wraps an embedding provider with vector math used
// across the pipeline: single and averaged embedding generation plus
// cosine similarity.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyInput is returned when an averaged embedding is requested for
// zero texts.
var ErrEmptyInput = errors.New("embedding: no input texts")

// ProviderError wraps a failure of the upstream embedding provider
// (network, quota). It is always recoverable from the caller's point of
// view; retry policy belongs to the caller.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("embedding provider: %v", e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// DimensionError reports a vector length mismatch. When Want is the
// vector store's configured dimension this is a configuration fault and
// callers must fail fast instead of retrying.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Provider turns text into a fixed-length float vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, text string) ([]float32, error)

func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Engine generates embeddings via a Provider. Batch generation runs
// concurrently with bounded parallelism.
type Engine struct {
	provider    Provider
	concurrency int
}

// NewEngine creates an Engine. concurrency bounds parallel provider
// calls during averaging; values <= 0 default to 4.
func NewEngine(provider Provider, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Engine{provider: provider, concurrency: concurrency}
}

// Generate returns the embedding for a single text. Provider failures
// are wrapped in *ProviderError.
func (e *Engine) Generate(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	return vec, nil
}

// GenerateAveraged embeds every text and returns the element-wise mean.
// All input embeddings must share one dimension; a mismatch is reported
// as *DimensionError.
func (e *Engine) GenerateAveraged(ctx context.Context, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	vectors := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.provider.Embed(gCtx, text)
			if err != nil {
				return &ProviderError{Err: fmt.Errorf("text %d: %w", i, err)}
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Average(vectors)
}

// Average computes the element-wise arithmetic mean of the given
// vectors. The input must be non-empty and uniform in length.
func Average(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, &DimensionError{Want: dim, Got: len(v)}
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	avg := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sum {
		avg[i] = float32(s / n)
	}
	return avg, nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different lengths produce *DimensionError; a zero vector
// yields similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
