// Package gormbase holds the GORM-backed Database logic shared by the
// sqlitestore (local/dev) and pgstore (production) adapters: transactions,
// idempotent upserts, DLQ management, and keyword/hybrid search. Backend-
// specific pieces (serializable-transaction retry, vector search, unique-
// violation classification) are injected by the concrete adapter.
package gormbase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

// SemanticSearcher is implemented by the concrete backend to run the
// vector-distance half of semantic/hybrid search; sqlite computes cosine
// distance in process, postgres delegates to pgvector or Qdrant.
type SemanticSearcher interface {
	SemanticCandidates(ctx context.Context, q store.SearchQuery, db *gorm.DB) ([]store.SearchHit, error)
}

// Base implements store.Database against any GORM dialector. RunSerializableTx
// is left to the concrete backend since sqlite has no serializable isolation
// worth retrying on.
type Base struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Semantic SemanticSearcher
}

func New(db *gorm.DB, log *logger.Logger, semantic SemanticSearcher) *Base {
	return &Base{DB: db, Log: log.With("service", "store.Base"), Semantic: semantic}
}

func (b *Base) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.New(ctx, tx))
	})
}

func (b *Base) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return b.DB.WithContext(dbc.Ctx)
}

func (b *Base) GetAssetByBucketKey(dbc dbctx.Context, bucket, objectKey string) (*domain.Asset, error) {
	var out domain.Asset
	err := b.tx(dbc).Where("bucket = ? AND object_key = ? AND tombstone = ?", bucket, objectKey, false).
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) GetAssetByID(dbc dbctx.Context, assetID uuid.UUID) (*domain.Asset, error) {
	var out domain.Asset
	err := b.tx(dbc).Where("id = ?", assetID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) CreateAsset(dbc dbctx.Context, asset *domain.Asset) error {
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	if asset.LineageID == uuid.Nil {
		asset.LineageID = uuid.New()
	}
	return b.tx(dbc).Create(asset).Error
}

func (b *Base) UpdateAssetFields(dbc dbctx.Context, assetID uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return b.tx(dbc).Model(&domain.Asset{}).Where("id = ?", assetID).Updates(updates).Error
}

func (b *Base) GetVersionByAssetAndVersionID(dbc dbctx.Context, assetID, versionID uuid.UUID) (*domain.AssetVersion, error) {
	var out domain.AssetVersion
	err := b.tx(dbc).Where("asset_id = ? AND id = ?", assetID, versionID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) GetVersionByID(dbc dbctx.Context, versionID uuid.UUID) (*domain.AssetVersion, error) {
	var out domain.AssetVersion
	err := b.tx(dbc).Where("id = ?", versionID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) CreateVersion(dbc dbctx.Context, version *domain.AssetVersion) error {
	if version.ID == uuid.Nil {
		return fmt.Errorf("gormbase: version id must be pre-derived")
	}
	return b.tx(dbc).Create(version).Error
}

func (b *Base) UpdateVersionFields(dbc dbctx.Context, versionID uuid.UUID, updates map[string]interface{}) error {
	return b.tx(dbc).Model(&domain.AssetVersion{}).Where("id = ?", versionID).Updates(updates).Error
}

func (b *Base) UpsertSegments(dbc dbctx.Context, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	return b.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_ms", "end_ms", "text", "speaker", "confidence", "visibility", "strategy",
		}),
	}).Create(&segments).Error
}

func (b *Base) UpsertEmbeddings(dbc dbctx.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return b.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vector", "model", "dimension", "visibility",
		}),
	}).Create(&embeddings).Error
}

func (b *Base) SetVisibilityForVersion(dbc dbctx.Context, versionID uuid.UUID, visibility domain.PublishState) error {
	t := b.tx(dbc)
	if err := t.Model(&domain.Segment{}).Where("version_id = ?", versionID).
		Update("visibility", visibility).Error; err != nil {
		return err
	}
	return t.Model(&domain.Embedding{}).Where("version_id = ?", versionID).
		Update("visibility", visibility).Error
}

func (b *Base) SoftDeleteByAsset(dbc dbctx.Context, assetID uuid.UUID) error {
	t := b.tx(dbc)
	if err := t.Model(&domain.Segment{}).Where("asset_id = ?", assetID).
		Update("visibility", domain.PublishStateSoftDeleted).Error; err != nil {
		return err
	}
	return t.Model(&domain.Embedding{}).Where("asset_id = ?", assetID).
		Update("visibility", domain.PublishStateSoftDeleted).Error
}

func (b *Base) AddDLQItem(dbc dbctx.Context, item *domain.DLQItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return b.tx(dbc).Create(item).Error
}

func (b *Base) GetDLQItem(dbc dbctx.Context, id uuid.UUID) (*domain.DLQItem, error) {
	var out domain.DLQItem
	err := b.tx(dbc).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) GetLatestDLQItemByAsset(dbc dbctx.Context, assetID uuid.UUID) (*domain.DLQItem, error) {
	var out domain.DLQItem
	err := b.tx(dbc).Where("asset_id = ?", assetID).Order("created_at DESC").First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Base) RemoveDLQItem(dbc dbctx.Context, id uuid.UUID) error {
	return b.tx(dbc).Where("id = ?", id).Delete(&domain.DLQItem{}).Error
}

func (b *Base) ListQuarantinedAssets(dbc dbctx.Context) ([]*domain.Asset, error) {
	var out []*domain.Asset
	err := b.tx(dbc).Where("status = ?", domain.AssetStatusQuarantined).
		Order("updated_at DESC").Find(&out).Error
	return out, err
}

func (b *Base) PurgeArchivedVersionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var versionIDs []uuid.UUID
	if err := b.DB.WithContext(ctx).Model(&domain.AssetVersion{}).
		Where("publish_state = ? AND created_at < ?", domain.PublishStateArchived, cutoff).
		Pluck("id", &versionIDs).Error; err != nil {
		return 0, err
	}
	if len(versionIDs) == 0 {
		return 0, nil
	}
	var purged int64
	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id IN ?", versionIDs).Delete(&domain.Embedding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id IN ?", versionIDs).Delete(&domain.Segment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", versionIDs).Delete(&domain.AssetVersion{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	return purged, err
}

type activeSegmentRow struct {
	domain.Segment
	Bucket    string
	ObjectKey string
}

// KeywordSearch tokenizes into a case-insensitive substring match and scores
// by the fraction of query tokens found in the segment text, so a partial
// match scores below 1.0 rather than every match scoring a flat 1.0 (spec
// §9's resolved open question).
func (b *Base) KeywordSearch(ctx context.Context, q store.SearchQuery) ([]store.SearchHit, int, error) {
	rows, err := b.activeSegmentCandidates(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	tokens := tokenize(q.Text)
	if len(tokens) == 0 {
		return []store.SearchHit{}, 0, nil
	}

	type scored struct {
		row   activeSegmentRow
		score float64
	}
	matched := make([]scored, 0, len(rows))
	for _, r := range rows {
		score := keywordScore(r.Text, tokens)
		if score <= 0 {
			continue
		}
		matched = append(matched, scored{row: r, score: score})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].row.CreatedAt.After(matched[j].row.CreatedAt)
	})
	hits := make([]store.SearchHit, 0, len(matched))
	for _, m := range matched {
		hits = append(hits, toHit(m.row, m.score, "keyword"))
	}
	return paginate(hits, q)
}

func (b *Base) SemanticSearch(ctx context.Context, q store.SearchQuery) ([]store.SearchHit, int, error) {
	if len(q.Vector) == 0 {
		return nil, 0, fmt.Errorf("semantic search requires a query vector")
	}
	hits, err := b.Semantic.SemanticCandidates(ctx, q, b.DB)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].SegmentID > hits[j].SegmentID
	})
	return paginate(hits, q)
}

func (b *Base) HybridSearch(ctx context.Context, q store.SearchQuery) ([]store.SearchHit, int, error) {
	kwHits, _, err := b.KeywordSearch(ctx, store.SearchQuery{
		Text: q.Text, Bucket: q.Bucket, Speaker: q.Speaker, Limit: 100000, Offset: 0,
	})
	if err != nil {
		return nil, 0, err
	}
	var semHits []store.SearchHit
	if len(q.Vector) > 0 {
		semHits, _, err = b.SemanticSearch(ctx, store.SearchQuery{
			Vector: q.Vector, Bucket: q.Bucket, Speaker: q.Speaker, Limit: 100000, Offset: 0,
		})
		if err != nil {
			return nil, 0, err
		}
	}

	type fused struct {
		hit     store.SearchHit
		kw, sem float64
	}
	bySeg := map[string]*fused{}
	for _, h := range kwHits {
		bySeg[h.SegmentID] = &fused{hit: h, kw: h.Score}
	}
	for _, h := range semHits {
		if f, ok := bySeg[h.SegmentID]; ok {
			f.sem = h.Score
		} else {
			bySeg[h.SegmentID] = &fused{hit: h, sem: h.Score}
		}
	}

	wk, ws := q.WeightKW, q.WeightSem
	out := make([]store.SearchHit, 0, len(bySeg))
	for _, f := range bySeg {
		h := f.hit
		h.Score = wk*f.kw + ws*f.sem
		switch {
		case f.kw > 0 && f.sem > 0:
			h.MatchType = "hybrid"
		case f.sem > 0:
			h.MatchType = "semantic"
		default:
			h.MatchType = "keyword"
		}
		out = append(out, h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		fi, fj := bySeg[out[i].SegmentID], bySeg[out[j].SegmentID]
		if fi.sem != fj.sem {
			return fi.sem > fj.sem
		}
		if fi.kw != fj.kw {
			return fi.kw > fj.kw
		}
		return out[i].SegmentID < out[j].SegmentID
	})
	return paginate(out, q)
}

func (b *Base) activeSegmentCandidates(ctx context.Context, q store.SearchQuery) ([]activeSegmentRow, error) {
	tx := b.DB.WithContext(ctx).
		Table("transcript_segments AS s").
		Select("s.*, a.bucket AS bucket, a.object_key AS object_key").
		Joins("JOIN media_assets a ON a.current_version_id = s.version_id AND a.id = s.asset_id").
		Where("s.visibility = ?", domain.PublishStateActive).
		Where("a.tombstone = ?", false)
	if q.Bucket != "" {
		tx = tx.Where("a.bucket = ?", q.Bucket)
	}
	if q.Speaker != "" {
		tx = tx.Where("s.speaker = ?", q.Speaker)
	}
	var rows []activeSegmentRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func toHit(r activeSegmentRow, score float64, matchType string) store.SearchHit {
	return store.SearchHit{
		AssetID:   r.AssetID,
		VersionID: r.VersionID,
		SegmentID: r.ID,
		StartMs:   r.StartMs,
		EndMs:     r.EndMs,
		Snippet:   r.Text,
		Score:     score,
		MatchType: matchType,
		Speaker:   r.Speaker,
		Bucket:    r.Bucket,
		ObjectKey: r.ObjectKey,
	}
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// keywordScore is the fraction of query tokens present in the segment text,
// a continuous [0,1] rank-preserving score rather than a flat match/no-match.
func keywordScore(text string, tokens []string) float64 {
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(tokens))
}

func paginate(hits []store.SearchHit, q store.SearchQuery) ([]store.SearchHit, int, error) {
	total := len(hits)
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []store.SearchHit{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return hits[offset:end], total, nil
}
