// Package fakeembed is the local/test embed.Embedder adapter: it derives a
// deterministic unit vector from each text's hash so query and orchestrator
// tests don't depend on a real embedding backend.
package fakeembed

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/mediavault/transcript-pipeline/internal/platform/embed"
)

type client struct {
	dimension int
}

func New(dimension int) embed.Embedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &client{dimension: dimension}
}

func (c *client) Name() string    { return "fake_embed" }
func (c *client) Dimension() int { return c.dimension }

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t, c.dimension)
	}
	return out, nil
}

func vectorFor(text string, dim int) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	var normSq float64
	for i := 0; i < dim; i++ {
		b := seed[i%len(seed)]
		v := float64(int(b)-128) / 128.0
		vec[i] = float32(v)
		normSq += v * v
	}
	norm := math.Sqrt(normSq)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
