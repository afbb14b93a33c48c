package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/triage/internal/embeddings"
	"github.com/example/triage/internal/index"
)

// ErrEmbeddingFailed reports that the question could not be embedded.
// The failure is not retried within a request; callers may retry the whole
// request safely.
var ErrEmbeddingFailed = errors.New("question embedding failed")

// Engine turns a question into ranked ticket evidence.
type Engine struct {
	embedder embeddings.Embedder
	idx      index.VectorIndex
}

// NewEngine creates a retrieval engine over the given embedder and index.
func NewEngine(embedder embeddings.Embedder, idx index.VectorIndex) *Engine {
	return &Engine{embedder: embedder, idx: idx}
}

// Retrieve embeds the question and queries the index for its k nearest
// tickets. Index errors propagate unmasked.
func (e *Engine) Retrieve(ctx context.Context, question string, k int) (index.EvidenceSet, error) {
	if k < 1 {
		return nil, fmt.Errorf("evidence size k must be >= 1, got %d", k)
	}

	vectors, err := e.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", ErrEmbeddingFailed)
	}

	set, err := e.idx.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return set, nil
}
