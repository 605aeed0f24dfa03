package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ChunkingStrategy is the algorithm that produced a segment's boundaries.
type ChunkingStrategy string

const (
	ChunkingSentence    ChunkingStrategy = "sentence"
	ChunkingFixedWindow ChunkingStrategy = "fixed_window"
)

// Segment is a timed text chunk of a version's transcript.
type Segment struct {
	ID         string       `gorm:"primaryKey" json:"id"`
	AssetID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_segment_asset_version" json:"asset_id"`
	VersionID  uuid.UUID    `gorm:"type:uuid;not null;index:idx_segment_asset_version" json:"version_id"`
	StartMs    int64        `json:"start_ms"`
	EndMs      int64        `json:"end_ms"`
	Text       string       `json:"text"`
	Speaker    *string      `json:"speaker,omitempty"`
	Confidence float64      `json:"confidence"`
	Visibility PublishState `gorm:"not null;index" json:"visibility"`
	Strategy   ChunkingStrategy `json:"strategy"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Segment) TableName() string { return "transcript_segments" }

// SegmentID derives the deterministic id described in spec §4.2 phase 3.
func SegmentID(versionID uuid.UUID, index int) string {
	return versionID.String() + "_seg_" + strconv.Itoa(index)
}
