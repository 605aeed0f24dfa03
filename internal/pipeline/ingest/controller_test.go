package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/sqlitestore"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue/inmem"
)

func mustDBCtx() dbctx.Context {
	return dbctx.New(context.Background(), nil)
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	db, err := sqlitestore.New(log, "")
	if err != nil {
		t.Fatalf("sqlitestore.New: %v", err)
	}
	return NewController(log, db, nil, inmem.New(), nil)
}

func createdEvent(bucket, key, etag string, size int64) objectstore.Event {
	return objectstore.Event{
		Type: objectstore.EventCreated, Bucket: bucket, Key: key,
		ETag: etag, Size: size, Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func TestHandleObjectCreatedIgnoresUnsupportedExtensions(t *testing.T) {
	c := newTestController(t)
	err := c.HandleObjectCreated(context.Background(), createdEvent("b", "notes.txt", "etag", 10))
	if err != nil {
		t.Fatalf("HandleObjectCreated: %v", err)
	}
}

func TestHandleObjectCreatedIsIdempotentForIdenticalContent(t *testing.T) {
	c := newTestController(t)
	ev := createdEvent("b", "lecture.mp4", "etag-1", 1024)

	if err := c.HandleObjectCreated(context.Background(), ev); err != nil {
		t.Fatalf("first HandleObjectCreated: %v", err)
	}
	if err := c.HandleObjectCreated(context.Background(), ev); err != nil {
		t.Fatalf("second HandleObjectCreated: %v", err)
	}

	asset, err := c.db.GetAssetByBucketKey(mustDBCtx(), "b", "lecture.mp4")
	if err != nil {
		t.Fatalf("GetAssetByBucketKey: %v", err)
	}
	if asset == nil {
		t.Fatalf("expected asset to exist")
	}
	versionID := domain.DeriveVersionID(ev.ETag, ev.Size, ev.Timestamp.UnixMilli())
	version, err := c.db.GetVersionByAssetAndVersionID(mustDBCtx(), asset.ID, versionID)
	if err != nil {
		t.Fatalf("GetVersionByAssetAndVersionID: %v", err)
	}
	if version == nil {
		t.Fatalf("expected exactly one version to exist")
	}
}

func TestHandleObjectCreatedSharesLineageAcrossVersions(t *testing.T) {
	c := newTestController(t)
	first := createdEvent("b", "lecture.mp4", "etag-1", 1024)
	second := createdEvent("b", "lecture.mp4", "etag-2", 2048)

	if err := c.HandleObjectCreated(context.Background(), first); err != nil {
		t.Fatalf("first HandleObjectCreated: %v", err)
	}
	if err := c.HandleObjectCreated(context.Background(), second); err != nil {
		t.Fatalf("second HandleObjectCreated: %v", err)
	}

	asset, err := c.db.GetAssetByBucketKey(mustDBCtx(), "b", "lecture.mp4")
	if err != nil {
		t.Fatalf("GetAssetByBucketKey: %v", err)
	}
	if asset == nil {
		t.Fatalf("expected asset to exist")
	}
	v1 := domain.DeriveVersionID(first.ETag, first.Size, first.Timestamp.UnixMilli())
	v2 := domain.DeriveVersionID(second.ETag, second.Size, second.Timestamp.UnixMilli())
	if v1 == v2 {
		t.Fatalf("expected distinct version ids for distinct content")
	}
	ver1, err := c.db.GetVersionByAssetAndVersionID(mustDBCtx(), asset.ID, v1)
	if err != nil {
		t.Fatalf("version 1 lookup: %v", err)
	}
	if ver1 == nil {
		t.Fatalf("expected version 1 under the shared asset")
	}
	ver2, err := c.db.GetVersionByAssetAndVersionID(mustDBCtx(), asset.ID, v2)
	if err != nil {
		t.Fatalf("version 2 lookup: %v", err)
	}
	if ver2 == nil {
		t.Fatalf("expected version 2 under the shared asset")
	}
}

func TestHandleObjectRemovedTombstonesAsset(t *testing.T) {
	c := newTestController(t)
	ev := createdEvent("b", "lecture.mp4", "etag-1", 1024)
	if err := c.HandleObjectCreated(context.Background(), ev); err != nil {
		t.Fatalf("HandleObjectCreated: %v", err)
	}

	removed := objectstore.Event{Type: objectstore.EventRemoved, Bucket: "b", Key: "lecture.mp4"}
	if err := c.HandleObjectRemoved(context.Background(), removed); err != nil {
		t.Fatalf("HandleObjectRemoved: %v", err)
	}

	asset, err := c.db.GetAssetByBucketKey(mustDBCtx(), "b", "lecture.mp4")
	if err != nil {
		t.Fatalf("GetAssetByBucketKey: %v", err)
	}
	if asset != nil {
		t.Fatalf("expected tombstoned asset to be excluded from bucket/key lookup")
	}
}

func TestHandleObjectRemovedIgnoresUnknownAsset(t *testing.T) {
	c := newTestController(t)
	ev := objectstore.Event{Type: objectstore.EventRemoved, Bucket: "b", Key: "missing.mp4"}
	if err := c.HandleObjectRemoved(context.Background(), ev); err != nil {
		t.Fatalf("HandleObjectRemoved: %v", err)
	}
}
