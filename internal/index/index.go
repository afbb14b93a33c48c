package index

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable reports that the backing store cannot serve queries.
	ErrIndexUnavailable = errors.New("ticket index unavailable")

	// ErrDimensionMismatch reports a query embedding whose length disagrees
	// with the indexed vectors.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// VectorIndex answers nearest-neighbor queries over ticket embeddings.
// Queries are deterministic for a fixed index snapshot.
type VectorIndex interface {
	// Query returns up to k neighbors of the embedding, ranked by similarity.
	// An empty index yields an empty set, not an error.
	Query(ctx context.Context, embedding []float32, k int) (EvidenceSet, error)
}
