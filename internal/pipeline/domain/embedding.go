package domain

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Vector is a fixed-dimension float embedding, persisted as a packed
// little-endian float32 byte string (works as sqlite BLOB or postgres
// bytea without a database-specific vector extension).
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("domain.Vector: unsupported scan type %T", src)
	}
	if len(buf)%4 != 0 {
		return fmt.Errorf("domain.Vector: byte length %d not a multiple of 4", len(buf))
	}
	out := make(Vector, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	*v = out
	return nil
}

// Embedding is a vector for a segment.
type Embedding struct {
	ID         string       `gorm:"primaryKey" json:"id"`
	AssetID    uuid.UUID    `gorm:"type:uuid;not null;index:idx_embedding_asset_version" json:"asset_id"`
	VersionID  uuid.UUID    `gorm:"type:uuid;not null;index:idx_embedding_asset_version" json:"version_id"`
	SegmentID  string       `gorm:"not null;uniqueIndex" json:"segment_id"`
	Vector     Vector       `gorm:"type:bytea" json:"-"`
	Model      string       `json:"model"`
	Dimension  int          `json:"dimension"`
	Visibility PublishState `gorm:"not null;index" json:"visibility"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Embedding) TableName() string { return "transcript_embeddings" }

// EmbeddingID derives a deterministic id bound 1:1 to its segment, matching
// the invariant that (asset, version, segment) maps to at most one embedding.
func EmbeddingID(segmentID string) string {
	return segmentID + "_emb"
}
