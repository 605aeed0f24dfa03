package publish

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/sqlitestore"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

func newTestPublisher(t *testing.T) (*Publisher, *sqlitestore.Store) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	db, err := sqlitestore.New(log, "")
	if err != nil {
		t.Fatalf("sqlitestore.New: %v", err)
	}
	store, ok := db.(*sqlitestore.Store)
	if !ok {
		t.Fatalf("expected *sqlitestore.Store")
	}
	return NewPublisher(log, store), store
}

func seedAssetWithVersion(t *testing.T, db *sqlitestore.Store, versionID uuid.UUID) uuid.UUID {
	t.Helper()
	dbc := dbctx.New(context.Background(), nil)
	asset := &domain.Asset{
		ID: uuid.New(), LineageID: uuid.New(), Bucket: "b", ObjectKey: "lecture.mp4",
		Status: domain.AssetStatusTranscribed, Engine: "fake_asr",
		IngestedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := db.CreateAsset(dbc, asset); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	version := &domain.AssetVersion{
		ID: versionID, AssetID: asset.ID,
		ProcessingStatus: domain.VersionStatusProcessing,
		PublishState:     domain.PublishStateStaging,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.CreateVersion(dbc, version); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	return asset.ID
}

func TestPublishFlipsCurrentVersionAndVisibility(t *testing.T) {
	p, db := newTestPublisher(t)
	versionID := uuid.New()
	assetID := seedAssetWithVersion(t, db, versionID)

	if err := p.Publish(context.Background(), assetID, versionID); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	dbc := dbctx.New(context.Background(), nil)
	asset, err := db.GetAssetByID(dbc, assetID)
	if err != nil {
		t.Fatalf("GetAssetByID: %v", err)
	}
	if asset.CurrentVersionID == nil || *asset.CurrentVersionID != versionID {
		t.Fatalf("expected current_version_id=%s, got %v", versionID, asset.CurrentVersionID)
	}
	if asset.Status != domain.AssetStatusIndexed {
		t.Fatalf("expected status=INDEXED, got %s", asset.Status)
	}

	version, err := db.GetVersionByID(dbc, versionID)
	if err != nil {
		t.Fatalf("GetVersionByID: %v", err)
	}
	if version.PublishState != domain.PublishStateActive {
		t.Fatalf("expected publish_state=ACTIVE, got %s", version.PublishState)
	}
}

func TestPublishIsIdempotentForAlreadyActiveVersion(t *testing.T) {
	p, db := newTestPublisher(t)
	versionID := uuid.New()
	assetID := seedAssetWithVersion(t, db, versionID)

	if err := p.Publish(context.Background(), assetID, versionID); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	if err := p.Publish(context.Background(), assetID, versionID); err != nil {
		t.Fatalf("second Publish (no-op) should not error: %v", err)
	}
}

func TestPublishArchivesThePreviousActiveVersion(t *testing.T) {
	p, db := newTestPublisher(t)
	v1 := uuid.New()
	assetID := seedAssetWithVersion(t, db, v1)
	if err := p.Publish(context.Background(), assetID, v1); err != nil {
		t.Fatalf("publish v1: %v", err)
	}

	dbc := dbctx.New(context.Background(), nil)
	v2 := uuid.New()
	v2version := &domain.AssetVersion{
		ID: v2, AssetID: assetID,
		ProcessingStatus: domain.VersionStatusProcessing,
		PublishState:     domain.PublishStateStaging,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.CreateVersion(dbc, v2version); err != nil {
		t.Fatalf("CreateVersion v2: %v", err)
	}

	if err := p.Publish(context.Background(), assetID, v2); err != nil {
		t.Fatalf("publish v2: %v", err)
	}

	oldVersion, err := db.GetVersionByID(dbc, v1)
	if err != nil {
		t.Fatalf("GetVersionByID v1: %v", err)
	}
	if oldVersion.PublishState != domain.PublishStateArchived {
		t.Fatalf("expected v1 publish_state=ARCHIVED, got %s", oldVersion.PublishState)
	}

	asset, err := db.GetAssetByID(dbc, assetID)
	if err != nil {
		t.Fatalf("GetAssetByID: %v", err)
	}
	if asset.CurrentVersionID == nil || *asset.CurrentVersionID != v2 {
		t.Fatalf("expected current_version_id=%s, got %v", v2, asset.CurrentVersionID)
	}
}

func TestPublishReturnsNotFoundForUnknownAsset(t *testing.T) {
	p, _ := newTestPublisher(t)
	err := p.Publish(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatalf("expected error for unknown asset")
	}
}
