// Package sqlitestore is the local/dev store.Database adapter, backed by
// SQLite via gorm.io/driver/sqlite. It has no vector extension, so semantic
// search computes cosine distance in process over the active candidate set.
package sqlitestore

import (
	"context"
	"fmt"
	"math"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/gormbase"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

type Store struct {
	*gormbase.Base
}

func New(log *logger.Logger, dsn string) (store.Database, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore open: %w", err)
	}
	if err := db.AutoMigrate(
		&domain.Asset{}, &domain.AssetVersion{}, &domain.Segment{},
		&domain.Embedding{}, &domain.DLQItem{},
	); err != nil {
		return nil, fmt.Errorf("sqlitestore migrate: %w", err)
	}

	s := &Store{}
	s.Base = gormbase.New(db, log.With("service", "sqlitestore.Store"), s)
	return s, nil
}

// RunSerializableTx: SQLite has no MVCC serializable isolation to speak of;
// the driver's default transaction already serializes writers on the
// single-file lock, so a plain transaction satisfies the cutover contract.
func (s *Store) RunSerializableTx(ctx context.Context, fn store.TxFunc) error {
	return s.RunInTx(ctx, fn)
}

// SemanticCandidates pulls the active-segment candidate set with their
// embeddings and ranks by cosine similarity in process.
func (s *Store) SemanticCandidates(ctx context.Context, q store.SearchQuery, db *gorm.DB) ([]store.SearchHit, error) {
	type row struct {
		domain.Segment
		Bucket    string
		ObjectKey string
		Vector    domain.Vector
	}

	tx := db.WithContext(ctx).
		Table("transcript_segments AS s").
		Select("s.*, a.bucket AS bucket, a.object_key AS object_key, e.vector AS vector").
		Joins("JOIN media_assets a ON a.current_version_id = s.version_id AND a.id = s.asset_id").
		Joins("JOIN transcript_embeddings e ON e.segment_id = s.id AND e.visibility = s.visibility").
		Where("s.visibility = ?", domain.PublishStateActive).
		Where("a.tombstone = ?", false)
	if q.Bucket != "" {
		tx = tx.Where("a.bucket = ?", q.Bucket)
	}
	if q.Speaker != "" {
		tx = tx.Where("s.speaker = ?", q.Speaker)
	}

	var rows []row
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]store.SearchHit, 0, len(rows))
	for _, r := range rows {
		sim := cosineSimilarity(q.Vector, r.Vector)
		out = append(out, store.SearchHit{
			AssetID:   r.AssetID,
			VersionID: r.VersionID,
			SegmentID: r.ID,
			StartMs:   r.StartMs,
			EndMs:     r.EndMs,
			Snippet:   r.Text,
			Score:     sim,
			MatchType: "semantic",
			Speaker:   r.Speaker,
			Bucket:    r.Bucket,
			ObjectKey: r.ObjectKey,
		})
	}
	return out, nil
}

// cosineSimilarity returns 1-cosine_distance, clamped to [0,1] per spec §4.5.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	sim := cos
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
