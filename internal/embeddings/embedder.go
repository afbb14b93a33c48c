package embeddings

import "context"

// Embedder turns ticket and question text into embedding vectors.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of the vectors this embedder produces.
	Dimensions() int

	// Name returns the model identifier.
	Name() string
}
