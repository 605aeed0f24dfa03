// Package pgstore is the production store.Database adapter, backed by
// PostgreSQL (+ pgvector) via gorm.io/driver/postgres. Its serializable
// transaction helper retries on the codes jackc/pgx/v5/pgconn reports for a
// losing writer in the publisher's atomic cutover (spec §4.3).
package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/gormbase"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/vectorindex"
)

const maxSerializableRetries = 3

type Store struct {
	*gormbase.Base
	index vectorindex.Index // optional Qdrant accelerator; nil falls back to pgvector SQL
}

func New(log *logger.Logger, dsn string, index vectorindex.Index) (store.Database, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dsn == "" {
		return nil, fmt.Errorf("missing postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("pgstore open: %w", err)
	}
	if err := db.AutoMigrate(
		&domain.Asset{}, &domain.AssetVersion{}, &domain.Segment{},
		&domain.Embedding{}, &domain.DLQItem{},
	); err != nil {
		return nil, fmt.Errorf("pgstore migrate: %w", err)
	}

	s := &Store{index: index}
	s.Base = gormbase.New(db, log.With("service", "pgstore.Store"), s)
	return s, nil
}

// RunSerializableTx runs fn inside a SERIALIZABLE transaction, retrying up
// to maxSerializableRetries times when Postgres reports a serialization
// failure — the publisher's atomic cutover (spec §4.3) is exactly this.
func (s *Store) RunSerializableTx(ctx context.Context, fn store.TxFunc) error {
	var lastErr error
	for attempt := 0; attempt <= maxSerializableRetries; attempt++ {
		err := s.Base.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.New(ctx, tx))
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("pgstore: serializable transaction failed after %d retries: %w", maxSerializableRetries, lastErr)
}

// UpsertSegments/UpsertEmbeddings inherit gormbase's ON CONFLICT upsert,
// which already absorbs the race isUniqueViolation would otherwise surface;
// isUniqueViolation exists for call sites (e.g. asset creation) that don't
// go through an upsert clause.
func (s *Store) CreateAsset(dbc dbctx.Context, asset *domain.Asset) error {
	if err := s.Base.CreateAsset(dbc, asset); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pgstore: asset already exists for (bucket, object_key): %w", err)
		}
		return err
	}
	return nil
}

// SemanticCandidates delegates to the Qdrant accelerator when configured;
// otherwise it falls back to pgvector's cosine-distance operator directly
// in SQL, matching the "relational engine with vector distance functions"
// assumption from spec §1.
func (s *Store) SemanticCandidates(ctx context.Context, q store.SearchQuery, db *gorm.DB) ([]store.SearchHit, error) {
	if s.index != nil {
		return s.semanticViaIndex(ctx, q, db)
	}
	return s.semanticViaSQL(ctx, q, db)
}

func (s *Store) semanticViaSQL(ctx context.Context, q store.SearchQuery, db *gorm.DB) ([]store.SearchHit, error) {
	type row struct {
		domain.Segment
		Bucket     string
		ObjectKey  string
		CosineDist float64
	}

	tx := db.WithContext(ctx).
		Table("transcript_segments AS s").
		Select("s.*, a.bucket AS bucket, a.object_key AS object_key, (e.vector <=> ?) AS cosine_dist", pgvectorLiteral(q.Vector)).
		Joins("JOIN media_assets a ON a.current_version_id = s.version_id AND a.id = s.asset_id").
		Joins("JOIN transcript_embeddings e ON e.segment_id = s.id AND e.visibility = s.visibility").
		Where("s.visibility = ?", domain.PublishStateActive).
		Where("a.tombstone = ?", false).
		Order("cosine_dist ASC")
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
		sim := 1 - r.CosineDist
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		out = append(out, store.SearchHit{
			AssetID: r.AssetID, VersionID: r.VersionID, SegmentID: r.ID,
			StartMs: r.StartMs, EndMs: r.EndMs, Snippet: r.Text,
			Score: sim, MatchType: "semantic", Speaker: r.Speaker,
			Bucket: r.Bucket, ObjectKey: r.ObjectKey,
		})
	}
	return out, nil
}

func (s *Store) semanticViaIndex(ctx context.Context, q store.SearchQuery, db *gorm.DB) ([]store.SearchHit, error) {
	matches, err := s.index.Query(ctx, "", q.Vector, 200)
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]string, len(matches))
	scoreOf := map[string]float64{}
	for i, m := range matches {
		ids[i] = m.SegmentID
		scoreOf[m.SegmentID] = m.Score
	}

	type row struct {
		domain.Segment
		Bucket    string
		ObjectKey string
	}
	tx := db.WithContext(ctx).
		Table("transcript_segments AS s").
		Select("s.*, a.bucket AS bucket, a.object_key AS object_key").
		Joins("JOIN media_assets a ON a.current_version_id = s.version_id AND a.id = s.asset_id").
		Where("s.id IN ?", ids).
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
		out = append(out, store.SearchHit{
			AssetID: r.AssetID, VersionID: r.VersionID, SegmentID: r.ID,
			StartMs: r.StartMs, EndMs: r.EndMs, Snippet: r.Text,
			Score: scoreOf[r.ID], MatchType: "semantic", Speaker: r.Speaker,
			Bucket: r.Bucket, ObjectKey: r.ObjectKey,
		})
	}
	return out, nil
}

func pgvectorLiteral(v []float32) string {
	s := "["
	for i, f := range v {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%g", f)
	}
	return s + "]"
}
