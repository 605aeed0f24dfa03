package retry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/sqlitestore"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue/inmem"
)

func newTestManager(policy Policy) *Manager {
	return &Manager{policy: policy, rand: rand.New(rand.NewSource(1))}
}

func newTestManagerWithStore(t *testing.T) (*Manager, *sqlitestore.Store, queue.Queue) {
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
	jobs := inmem.New()
	return NewManager(log, store, jobs, PolicyFromEnv()), store, jobs
}

func seedQuarantinedAsset(t *testing.T, db *sqlitestore.Store, versionID uuid.UUID) uuid.UUID {
	t.Helper()
	dbc := dbctx.New(context.Background(), nil)
	assetID := uuid.New()
	asset := &domain.Asset{
		ID: assetID, LineageID: uuid.New(), Bucket: "b", ObjectKey: "lecture.mp4",
		Status: domain.AssetStatusQuarantined, Engine: "fake_asr",
		IngestedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := db.CreateAsset(dbc, asset); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	item := &domain.DLQItem{
		ID:           uuid.New(),
		AssetID:      assetID,
		VersionID:    versionID,
		ErrorCode:    "MEDIA_FORMAT",
		ErrorMessage: "bad codec",
		Retryable:    false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.AddDLQItem(dbc, item); err != nil {
		t.Fatalf("AddDLQItem: %v", err)
	}
	return assetID
}

func TestRetryResolvesVersionFromDLQItemNotCurrentVersion(t *testing.T) {
	m, db, jobs := newTestManagerWithStore(t)
	quarantinedVersion := uuid.New()
	assetID := seedQuarantinedAsset(t, db, quarantinedVersion)

	if err := m.Retry(context.Background(), assetID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	delivery, err := jobs.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if delivery.Job.VersionID != quarantinedVersion {
		t.Fatalf("job.VersionID: want=%s got=%s (must be the quarantined version, not the asset's current published version)", quarantinedVersion, delivery.Job.VersionID)
	}
	if delivery.Job.Attempt != 0 {
		t.Fatalf("job.Attempt: want=0 got=%d", delivery.Job.Attempt)
	}

	dbc := dbctx.New(context.Background(), nil)
	asset, err := db.GetAssetByID(dbc, assetID)
	if err != nil {
		t.Fatalf("GetAssetByID: %v", err)
	}
	if asset.Status != domain.AssetStatusPendingRetry {
		t.Fatalf("asset.Status: want=%s got=%s", domain.AssetStatusPendingRetry, asset.Status)
	}

	remaining, err := db.GetLatestDLQItemByAsset(dbc, assetID)
	if err != nil {
		t.Fatalf("GetLatestDLQItemByAsset: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected DLQ item to be removed once its job was re-enqueued")
	}
}

func TestRetryReturnsNotFoundForUnknownAsset(t *testing.T) {
	m, _, _ := newTestManagerWithStore(t)
	if err := m.Retry(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error for unknown asset")
	}
}

func TestSkipMarksFailedAndRemovesDLQItem(t *testing.T) {
	m, db, _ := newTestManagerWithStore(t)
	versionID := uuid.New()
	assetID := seedQuarantinedAsset(t, db, versionID)

	if err := m.Skip(context.Background(), assetID); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	dbc := dbctx.New(context.Background(), nil)
	asset, err := db.GetAssetByID(dbc, assetID)
	if err != nil {
		t.Fatalf("GetAssetByID: %v", err)
	}
	if asset.Status != domain.AssetStatusFailed {
		t.Fatalf("asset.Status: want=%s got=%s", domain.AssetStatusFailed, asset.Status)
	}

	remaining, err := db.GetLatestDLQItemByAsset(dbc, assetID)
	if err != nil {
		t.Fatalf("GetLatestDLQItemByAsset: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected DLQ item to be removed by Skip")
	}
}

func TestBackoffStaysWithinJitterBounds(t *testing.T) {
	m := newTestManager(Policy{BaseDelay: time.Second, MaxDelay: 300 * time.Second})
	for attempt := 0; attempt < 10; attempt++ {
		raw := float64(m.policy.BaseDelay) * pow2(attempt)
		capped := raw
		if capped > float64(m.policy.MaxDelay) {
			capped = float64(m.policy.MaxDelay)
		}
		lo := time.Duration(capped * 0.75)
		hi := time.Duration(capped * 1.25)
		for i := 0; i < 20; i++ {
			d := m.backoff(attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt=%d: backoff=%v outside [%v,%v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	m := newTestManager(Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second})
	d := m.backoff(10) // 2^10s would far exceed MaxDelay without capping
	capped := float64(10 * time.Second)
	if float64(d) > capped*1.25 {
		t.Fatalf("backoff=%v exceeds capped+jitter bound %v", d, time.Duration(capped*1.25))
	}
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}
