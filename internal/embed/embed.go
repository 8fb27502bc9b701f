// Package embed computes chunk embeddings via one of two interchangeable
// backends, selected once from config.EmbeddingBackend: an OpenAI-compatible
// HTTP API (go-openai) or a native Ollama server.
package embed

import (
	"context"
	"math"
)

// Embedder turns chunk text into L2-normalized vectors, so downstream
// vector index comparisons via cosine/inner-product agree.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
}
