// Package store defines the Database port (spec §4.6): transactional
// begin/commit/rollback, idempotent upserts, the three search primitives,
// DLQ management, and age-based purge of archived versions. Concrete
// adapters live in sqlitestore (local/dev) and pgstore (production).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
)

// TxFunc runs inside a transaction; returning an error rolls back.
type TxFunc func(dbc dbctx.Context) error

// SearchMode distinguishes the three query-layer modes (spec §4.5).
type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
	SearchHybrid   SearchMode = "hybrid"
)

// SearchQuery carries every parameter the three search primitives need.
// Vector and hybrid weights are only consulted by the modes that use them.
type SearchQuery struct {
	Text      string
	Vector    []float32
	Bucket    string
	Speaker   string
	Limit     int
	Offset    int
	WeightKW  float64
	WeightSem float64
}

// SearchHit is one row of a search response (spec §4.5/§6).
type SearchHit struct {
	AssetID    uuid.UUID
	VersionID  uuid.UUID
	SegmentID  string
	StartMs    int64
	EndMs      int64
	Snippet    string
	Score      float64
	MatchType  string
	Speaker    *string
	Bucket     string
	ObjectKey  string
}

// Database is the port every pipeline component depends on for persistence.
type Database interface {
	RunInTx(ctx context.Context, fn TxFunc) error
	// RunSerializableTx is used by the publisher's atomic cutover (spec §4.3).
	// The postgres adapter retries up to 3 times on a serialization failure;
	// the sqlite adapter runs one plain transaction.
	RunSerializableTx(ctx context.Context, fn TxFunc) error

	GetAssetByBucketKey(dbc dbctx.Context, bucket, objectKey string) (*domain.Asset, error)
	GetAssetByID(dbc dbctx.Context, assetID uuid.UUID) (*domain.Asset, error)
	CreateAsset(dbc dbctx.Context, asset *domain.Asset) error
	UpdateAssetFields(dbc dbctx.Context, assetID uuid.UUID, updates map[string]interface{}) error

	GetVersionByAssetAndVersionID(dbc dbctx.Context, assetID, versionID uuid.UUID) (*domain.AssetVersion, error)
	GetVersionByID(dbc dbctx.Context, versionID uuid.UUID) (*domain.AssetVersion, error)
	CreateVersion(dbc dbctx.Context, version *domain.AssetVersion) error
	UpdateVersionFields(dbc dbctx.Context, versionID uuid.UUID, updates map[string]interface{}) error

	// UpsertSegments is idempotent on (asset_id, version_id, id): re-running
	// the orchestrator for a version overwrites rather than duplicates rows.
	UpsertSegments(dbc dbctx.Context, segments []domain.Segment) error
	UpsertEmbeddings(dbc dbctx.Context, embeddings []domain.Embedding) error

	// SetVisibilityForVersion flips every segment+embedding of a version to
	// the given visibility, used by the publisher's cutover.
	SetVisibilityForVersion(dbc dbctx.Context, versionID uuid.UUID, visibility domain.PublishState) error
	// SoftDeleteByAsset flips every segment+embedding of an asset (any
	// version) to SOFT_DELETED, used by the ingest controller's tombstone path.
	SoftDeleteByAsset(dbc dbctx.Context, assetID uuid.UUID) error

	AddDLQItem(dbc dbctx.Context, item *domain.DLQItem) error
	GetDLQItem(dbc dbctx.Context, id uuid.UUID) (*domain.DLQItem, error)
	// GetLatestDLQItemByAsset returns the most recently added DLQ item for an
	// asset, or nil if none exists — used by the Skip triage operation.
	GetLatestDLQItemByAsset(dbc dbctx.Context, assetID uuid.UUID) (*domain.DLQItem, error)
	RemoveDLQItem(dbc dbctx.Context, id uuid.UUID) error
	ListQuarantinedAssets(dbc dbctx.Context) ([]*domain.Asset, error)

	PurgeArchivedVersionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	KeywordSearch(ctx context.Context, q SearchQuery) ([]SearchHit, int, error)
	SemanticSearch(ctx context.Context, q SearchQuery) ([]SearchHit, int, error)
	HybridSearch(ctx context.Context, q SearchQuery) ([]SearchHit, int, error)
}
