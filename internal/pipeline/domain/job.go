package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExecutionMode selects how the ASR engine should process the media.
type ExecutionMode string

const (
	ExecutionModeSync  ExecutionMode = "sync"
	ExecutionModeAsync ExecutionMode = "async"
)

// EnginePolicy is the per-job configuration selecting transcription engine,
// diarization, execution mode, and chunking thresholds (spec §3, §4.2).
type EnginePolicy struct {
	Engine                   string           `json:"engine"`
	DiarizationEnabled       bool             `json:"diarization_enabled"`
	ExecutionMode            ExecutionMode    `json:"execution_mode"`
	ComputeThresholdSeconds  float64          `json:"compute_threshold_seconds"`
	ForceChunkingStrategy    ChunkingStrategy `json:"force_chunking_strategy,omitempty"`
	LanguageHint             string           `json:"language_hint,omitempty"`
}

// TranscriptionJob is a queued unit of work.
type TranscriptionJob struct {
	JobID          uuid.UUID    `json:"job_id"`
	AssetID        uuid.UUID    `json:"asset_id"`
	VersionID      uuid.UUID    `json:"version_id"`
	EnginePolicy   EnginePolicy `json:"engine_policy"`
	Attempt        int          `json:"attempt"`
	IdempotencyKey string       `json:"idempotency_key"`
	EnqueuedAt     time.Time    `json:"enqueued_at"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
}

// IdempotencyKey builds the `{asset-id}:{version-id}:{attempt}` key from
// spec §3.
func IdempotencyKey(assetID, versionID uuid.UUID, attempt int) string {
	return fmt.Sprintf("%s:%s:%d", assetID, versionID, attempt)
}

// DLQItem is a parked failed job with diagnostics.
type DLQItem struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	JobSnapshot   TranscriptionJob   `gorm:"serializer:json" json:"job_snapshot"`
	AssetID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"asset_id"`
	VersionID     uuid.UUID          `gorm:"type:uuid;not null" json:"version_id"`
	ErrorCode     string             `json:"error_code"`
	ErrorMessage  string             `json:"error_message"`
	Retryable     bool               `json:"retryable"`
	LogTrail      []string           `gorm:"serializer:json" json:"log_trail"`
	CreatedAt     time.Time          `gorm:"not null" json:"created_at"`
}

func (DLQItem) TableName() string { return "dlq_items" }
