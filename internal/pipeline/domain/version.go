package domain

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublishState is the visibility lifecycle tag shared by segments and
// embeddings within a version, and the version row itself.
type PublishState string

const (
	PublishStateStaging     PublishState = "STAGING"
	PublishStateActive      PublishState = "ACTIVE"
	PublishStateArchived    PublishState = "ARCHIVED"
	PublishStateSoftDeleted PublishState = "SOFT_DELETED"
)

// VersionProcessingStatus tracks a version through the orchestrator
// independently of the asset's coarser status field.
type VersionProcessingStatus string

const (
	VersionStatusIngested   VersionProcessingStatus = "INGESTED"
	VersionStatusProcessing VersionProcessingStatus = "PROCESSING"
	VersionStatusPublished  VersionProcessingStatus = "PUBLISHED"
)

// AssetVersion is one entry per distinct content state of an asset.
type AssetVersion struct {
	ID               uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID          uuid.UUID                `gorm:"type:uuid;not null;index" json:"asset_id"`
	ProcessingStatus VersionProcessingStatus   `gorm:"not null" json:"processing_status"`
	PublishState     PublishState              `gorm:"not null;index" json:"publish_state"`
	ETag             string                    `json:"etag"`
	ByteSize         int64                     `json:"byte_size"`
	CreatedAt        time.Time                 `gorm:"not null" json:"created_at"`
}

func (AssetVersion) TableName() string { return "asset_versions" }

// DeriveVersionID computes the deterministic version-id anchor described in
// spec §3: re-ingesting identical (etag, size, mtime) must yield the same
// id, so retries and redeliveries of the same content converge.
func DeriveVersionID(etag string, size int64, mtimeUnixMilli int64) uuid.UUID {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d", etag, size, mtimeUnixMilli)
	sum := h.Sum(nil)
	var b [16]byte
	copy(b[:], sum[:16])
	// Force RFC 4122 version/variant bits so the result is a valid UUID
	// while still being a pure function of the inputs.
	b[6] = (b[6] & 0x0f) | 0x50
	b[8] = (b[8] & 0x3f) | 0x80
	id, _ := uuid.FromBytes(b[:])
	return id
}
