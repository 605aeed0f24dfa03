// Package domain holds the persisted entities of the ingest and search
// pipeline: assets, versions, transcript segments, embeddings, jobs, and
// dead-letter items. These are plain GORM models; the pipeline components
// never depend on a specific database driver, only on the store.Database
// port that reads and writes them.
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AssetStatus is the ingest-visible state machine of an asset (spec §4.1).
type AssetStatus string

const (
	AssetStatusIngested      AssetStatus = "INGESTED"
	AssetStatusTranscribing  AssetStatus = "TRANSCRIBING"
	AssetStatusTranscribed   AssetStatus = "TRANSCRIBED"
	AssetStatusIndexed       AssetStatus = "INDEXED"
	AssetStatusPendingRetry  AssetStatus = "PENDING_RETRY"
	AssetStatusQuarantined   AssetStatus = "QUARANTINED"
	AssetStatusFailed        AssetStatus = "FAILED"
	AssetStatusDeleted       AssetStatus = "DELETED"
)

// TriageState classifies why a quarantined asset needs operator attention.
type TriageState string

const (
	TriageNeedsMediaFix     TriageState = "NEEDS_MEDIA_FIX"
	TriageNeedsEngineTuning TriageState = "NEEDS_ENGINE_TUNING"
	TriageQuarantined       TriageState = "QUARANTINED"
)

// Asset is the canonical record per (bucket, object-key).
type Asset struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	LineageID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"lineage_id"`
	Bucket      string     `gorm:"not null;index:idx_asset_bucket_key" json:"bucket"`
	ObjectKey   string     `gorm:"not null;index:idx_asset_bucket_key" json:"object_key"`

	CurrentVersionID *uuid.UUID `gorm:"type:uuid" json:"current_version_id,omitempty"`

	Status           AssetStatus  `gorm:"not null;index" json:"status"`
	TriageState      *TriageState `json:"triage_state,omitempty"`
	RecommendedAction *string     `json:"recommended_action,omitempty"`

	Engine       string `gorm:"not null" json:"engine"`
	LastError    string `json:"last_error,omitempty"`
	AttemptCount int    `gorm:"not null;default:0" json:"attempt_count"`

	ByteSize    int64  `json:"byte_size"`
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`

	DurationMs *int64 `json:"duration_ms,omitempty"`
	Codec      *string `json:"codec,omitempty"`

	Hints datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"hints,omitempty"`

	Tombstone bool `gorm:"not null;default:false;index" json:"tombstone"`

	IngestedAt time.Time `gorm:"not null" json:"ingested_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (Asset) TableName() string { return "media_assets" }
