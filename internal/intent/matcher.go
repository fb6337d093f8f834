package intent

import (
	"context"
	"fmt"
	"sync"

	"github.com/asiento-ai/asiento/internal/embedding"
)

// DefaultThreshold is the minimum cosine similarity for a query to count as
// matching an intent. Below it the query falls through to free-form chat.
const DefaultThreshold = 0.55

// Match is a recognized intent with its similarity score.
type Match struct {
	Definition
	Score float64
}

type centroid struct {
	def Definition
	vec []float32
}

// Matcher resolves queries to intents by cosine similarity against averaged
// example-phrase embeddings. Index must be called before Match; the indexed
// set is immutable afterwards and safe for concurrent matching.
type Matcher struct {
	embedder  *embedding.Engine
	threshold float64

	mu        sync.RWMutex
	centroids []centroid
}

// NewMatcher creates a Matcher. A threshold <= 0 uses DefaultThreshold.
func NewMatcher(embedder *embedding.Engine, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{embedder: embedder, threshold: threshold}
}

// Index embeds every definition's example phrases and stores the averaged
// vector as that intent's centroid. Any embedding failure fails the whole
// index; a half-indexed matcher would silently misroute queries.
func (m *Matcher) Index(ctx context.Context, defs []Definition) error {
	centroids := make([]centroid, 0, len(defs))
	for _, d := range defs {
		vec, err := m.embedder.GenerateAveraged(ctx, d.Examples)
		if err != nil {
			return fmt.Errorf("indexing intent %q: %w", d.Name, err)
		}
		centroids = append(centroids, centroid{def: d, vec: vec})
	}

	m.mu.Lock()
	m.centroids = centroids
	m.mu.Unlock()
	return nil
}

// Len returns the number of indexed intents.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.centroids)
}

// Similarity embeds both texts and returns their cosine similarity. It uses
// the same embedding backend as Match, so scores are comparable with the
// matching threshold.
func (m *Matcher) Similarity(ctx context.Context, text1, text2 string) (float64, error) {
	v1, err := m.embedder.Generate(ctx, text1)
	if err != nil {
		return 0, fmt.Errorf("embedding first text: %w", err)
	}
	v2, err := m.embedder.Generate(ctx, text2)
	if err != nil {
		return 0, fmt.Errorf("embedding second text: %w", err)
	}
	return embedding.CosineSimilarity(v1, v2)
}

// Match embeds the query and returns the closest intent, or nil when no
// centroid clears the similarity threshold.
func (m *Matcher) Match(ctx context.Context, query string) (*Match, error) {
	m.mu.RLock()
	centroids := m.centroids
	m.mu.RUnlock()
	if len(centroids) == 0 {
		return nil, nil
	}

	qVec, err := m.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var best *Match
	for _, c := range centroids {
		score, err := embedding.CosineSimilarity(qVec, c.vec)
		if err != nil {
			return nil, fmt.Errorf("scoring intent %q: %w", c.def.Name, err)
		}
		if best == nil || score > best.Score {
			best = &Match{Definition: c.def, Score: score}
		}
	}

	if best == nil || best.Score < m.threshold {
		return nil, nil
	}
	return best, nil
}
