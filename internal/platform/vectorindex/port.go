// Package vectorindex defines the optional ANN accelerator a production
// Database adapter may delegate semantic queries to (SPEC_FULL's domain
// stack). It is not the Database port itself: the store always remains the
// source of truth, and this index only speeds up the nearest-neighbor scan.
package vectorindex

import "context"

// Point is one embedding vector plus the payload fields the index needs to
// apply the two hard visibility filters without a round trip to Postgres.
type Point struct {
	ID        string
	AssetID   string
	VersionID string
	SegmentID string
	Visible   bool
	Vector    []float32
}

// Match is one nearest-neighbor hit.
type Match struct {
	SegmentID string
	Score     float64
}

// Index is the ANN accelerator port. Query's assetID is an optional scoping
// filter — pass "" for a global nearest-neighbor scan across all visible
// points (the query layer's semantic search is asset-agnostic).
type Index interface {
	Upsert(ctx context.Context, points []Point) error
	Delete(ctx context.Context, ids []string) error
	Query(ctx context.Context, assetID string, vector []float32, topK int) ([]Match, error)
}
