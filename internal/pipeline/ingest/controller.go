// Package ingest implements the ingest controller (spec §4.1): reacting to
// object-store events, deriving stable versions, and enqueueing jobs.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/ctxutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
)

var supportedExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".aac": true, ".flac": true,
	".mp4": true, ".mov": true, ".mxf": true,
}

// EnginePolicyResolver resolves the per-asset engine policy at ingest time;
// the resolved policy travels with the enqueued job to the orchestrator.
type EnginePolicyResolver func(bucket, objectKey string) domain.EnginePolicy

type Controller struct {
	log      *logger.Logger
	db       store.Database
	objects  objectstore.Store
	jobs     queue.Queue
	policyOf EnginePolicyResolver
}

func NewController(log *logger.Logger, db store.Database, objects objectstore.Store, jobs queue.Queue, policyOf EnginePolicyResolver) *Controller {
	if policyOf == nil {
		policyOf = func(string, string) domain.EnginePolicy {
			return domain.EnginePolicy{Engine: "fake_asr", ExecutionMode: domain.ExecutionModeAsync, ComputeThresholdSeconds: 600}
		}
	}
	return &Controller{
		log:      log.With("service", "ingest.Controller"),
		db:       db,
		objects:  objects,
		jobs:     jobs,
		policyOf: policyOf,
	}
}

func isSupportedMedia(objectKey string) bool {
	ext := strings.ToLower(filepath.Ext(objectKey))
	return supportedExtensions[ext]
}

// HandleObjectCreated implements the ObjectCreated contract (spec §4.1).
func (c *Controller) HandleObjectCreated(ctx context.Context, ev objectstore.Event) error {
	ctx = ctxutil.Default(ctx)
	if !isSupportedMedia(ev.Key) {
		return nil
	}

	meta := ev
	if meta.ETag == "" || meta.Size == 0 {
		head, err := c.objects.Head(ctx, ev.Bucket, ev.Key)
		if err != nil {
			return pipelineerr.New(pipelineerr.KindTransientNetwork, "ingest.HandleObjectCreated", err)
		}
		meta.ETag = head.ETag
		meta.Size = head.Size
		meta.Timestamp = head.ModifiedAt
	}
	versionID := domain.DeriveVersionID(meta.ETag, meta.Size, meta.Timestamp.UnixMilli())

	// The job is enqueued from inside the transaction so that creating the
	// asset/version rows and enqueueing the job commit or roll back
	// together (spec §5: no partial side effects). If the asset/version
	// already exist but enqueueing never succeeded, redelivery of the same
	// event re-runs this same all-or-nothing path rather than short-circuiting.
	return c.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		asset, err := c.db.GetAssetByBucketKey(dbc, ev.Bucket, ev.Key)
		if err != nil {
			return err
		}

		policy := c.policyOf(ev.Bucket, ev.Key)

		if asset == nil {
			asset = &domain.Asset{
				ID:         uuid.New(),
				LineageID:  uuid.New(),
				Bucket:     ev.Bucket,
				ObjectKey:  ev.Key,
				Status:     domain.AssetStatusIngested,
				Engine:     policy.Engine,
				ByteSize:   meta.Size,
				ETag:       meta.ETag,
				IngestedAt: meta.Timestamp,
				UpdatedAt:  meta.Timestamp,
			}
			if err := c.db.CreateAsset(dbc, asset); err != nil {
				return err
			}
		}

		existing, err := c.db.GetVersionByAssetAndVersionID(dbc, asset.ID, versionID)
		if err != nil {
			return err
		}
		if existing != nil {
			// idempotent: identical content already ingested for this asset,
			// and its job was already enqueued in the same transaction that
			// created it.
			return nil
		}

		version := &domain.AssetVersion{
			ID:               versionID,
			AssetID:          asset.ID,
			ProcessingStatus: domain.VersionStatusIngested,
			PublishState:     domain.PublishStateStaging,
			ETag:             meta.ETag,
			ByteSize:         meta.Size,
			CreatedAt:        meta.Timestamp,
		}
		if err := c.db.CreateVersion(dbc, version); err != nil {
			return err
		}

		job := domain.TranscriptionJob{
			JobID:          uuid.New(),
			AssetID:        asset.ID,
			VersionID:      versionID,
			EnginePolicy:   policy,
			Attempt:        0,
			IdempotencyKey: domain.IdempotencyKey(asset.ID, versionID, 0),
			EnqueuedAt:     meta.Timestamp,
			ScheduledAt:    meta.Timestamp,
		}
		if err := c.jobs.Enqueue(ctx, job); err != nil {
			return pipelineerr.New(pipelineerr.KindTransientResource, "ingest.HandleObjectCreated", err)
		}
		return nil
	})
}

// HandleObjectRemoved implements the ObjectRemoved contract (spec §4.1).
func (c *Controller) HandleObjectRemoved(ctx context.Context, ev objectstore.Event) error {
	ctx = ctxutil.Default(ctx)
	return c.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		asset, err := c.db.GetAssetByBucketKey(dbc, ev.Bucket, ev.Key)
		if err != nil {
			return err
		}
		if asset == nil {
			c.log.Info("object removed for unknown asset, ignoring", "bucket", ev.Bucket, "key", ev.Key)
			return nil
		}
		if err := c.db.UpdateAssetFields(dbc, asset.ID, map[string]interface{}{
			"tombstone":          true,
			"current_version_id": nil,
			"status":             domain.AssetStatusDeleted,
		}); err != nil {
			return err
		}
		return c.db.SoftDeleteByAsset(dbc, asset.ID)
	})
}
