// Package embed converts text into fixed-dimension vectors. The same
// embedder configuration must be used at ingestion and at query time;
// mixing embedding spaces silently degrades search quality and cannot be
// detected at runtime.
package embed

import "context"

// Embedder converts text to a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// BatchEmbedder is the optional bulk interface. Callers with many texts
// probe for it and fall back to one Embed call per text.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
