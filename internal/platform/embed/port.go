// Package embed defines the embedding port (spec §4.6) the orchestrator
// calls during the embedding phase, one batch per asset version.
package embed

import "context"

// Embedder turns transcript segment text into fixed-dimension vectors.
// Implementations must preserve input order in the returned slice.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
