// Package orchestrator drives a transcription job through the five phases
// of spec §4.2: idempotency gate, fetch+transcribe, segmentation, embedding,
// and publish. A bounded-concurrency worker pool consumes the job queue
// (spec §5).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/publish"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
	"github.com/mediavault/transcript-pipeline/internal/platform/ctxutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/objectstore"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
)

var tracer = otel.Tracer("orchestrator")

// FailureHandler routes a job that exhausted its phases to the retry
// manager; kept as an interface so orchestrator doesn't import retry
// directly (retry already imports queue/store, orchestrator would create a
// cycle through cmd wiring otherwise).
type FailureHandler interface {
	HandleFailure(ctx context.Context, job domain.TranscriptionJob, failErr error) error
}

type Config struct {
	Concurrency     int
	JobTimeout      time.Duration
	EmbedBatchSize  int
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:    envutil.Int("ORCHESTRATOR_CONCURRENCY", 4),
		JobTimeout:     envutil.Duration("ORCHESTRATOR_JOB_TIMEOUT", 10*time.Minute),
		EmbedBatchSize: envutil.Int("ORCHESTRATOR_EMBED_BATCH_SIZE", 64),
	}
}

type Orchestrator struct {
	log       *logger.Logger
	db        store.Database
	objects   objectstore.Store
	asrEngine asr.Engine
	embedder  embed.Embedder
	publisher *publish.Publisher
	failures  FailureHandler
	cfg       Config
}

func New(
	log *logger.Logger,
	db store.Database,
	objects objectstore.Store,
	asrEngine asr.Engine,
	embedder embed.Embedder,
	publisher *publish.Publisher,
	failures FailureHandler,
	cfg Config,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 64
	}
	return &Orchestrator{
		log:       log.With("service", "orchestrator.Orchestrator"),
		db:        db,
		objects:   objects,
		asrEngine: asrEngine,
		embedder:  embedder,
		publisher: publisher,
		failures:  failures,
		cfg:       cfg,
	}
}

// Run consumes deliveries from q with cfg.Concurrency workers until ctx is
// cancelled (spec §5's "up to C jobs concurrently" model). The bounded
// fan-out mirrors the teacher's errgroup.SetLimit usage for batch work
// (e.g. internal/modules/learning/steps/embed_chunks.go), substituted here
// for the teacher's own hand-rolled worker-pool shape.
func (o *Orchestrator) Run(ctx context.Context, q queue.Queue) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		default:
		}

		delivery, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return g.Wait()
			}
			o.log.Warn("dequeue error", "error", err)
			continue
		}
		if delivery == nil {
			continue
		}

		d := *delivery
		g.Go(func() error {
			o.process(gctx, q, d)
			return nil
		})
	}
}

func (o *Orchestrator) process(parent context.Context, q queue.Queue, d queue.Delivery) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(parent), o.cfg.JobTimeout)
	defer cancel()

	err := o.runJob(ctx, d.Job)
	if err != nil {
		o.log.Error("job failed", "asset_id", d.Job.AssetID, "version_id", d.Job.VersionID,
			"attempt", d.Job.Attempt, "error", err)
		if hErr := o.failures.HandleFailure(ctx, d.Job, err); hErr != nil {
			o.log.Error("failure handler error", "error", hErr)
		}
	}
	// Ack unconditionally: retries are re-enqueued as new deliveries by the
	// failure handler, never redelivered from this one (spec §4.2's ack/nack
	// policy).
	if ackErr := q.Ack(ctx, d.DeliveryID); ackErr != nil {
		o.log.Error("ack error", "delivery_id", d.DeliveryID, "error", ackErr)
	}
}

func (o *Orchestrator) runJob(ctx context.Context, job domain.TranscriptionJob) error {
	ctx, span := tracer.Start(ctx, "orchestrator.job",
		trace.WithAttributes(
			attribute.String("asset_id", job.AssetID.String()),
			attribute.String("version_id", job.VersionID.String()),
			attribute.String("job_id", job.JobID.String()),
		))
	defer span.End()

	done, err := o.idempotencyGate(ctx, job)
	if err != nil {
		return o.fail(span, err)
	}
	if done {
		return nil
	}

	result, err := o.fetchAndTranscribe(ctx, job)
	if err != nil {
		return o.fail(span, err)
	}

	segments, err := o.segment(ctx, job, result)
	if err != nil {
		return o.fail(span, err)
	}

	if err := o.embedPhase(ctx, job, segments); err != nil {
		return o.fail(span, err)
	}

	if err := o.publisher.Publish(ctx, job.AssetID, job.VersionID); err != nil {
		return o.fail(span, pipelineerr.New(pipelineerr.KindInternal, "orchestrator.publish", err))
	}
	return nil
}

func (o *Orchestrator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// idempotencyGate implements phase 1: a version already past TRANSCRIBED is
// a no-op ack.
func (o *Orchestrator) idempotencyGate(ctx context.Context, job domain.TranscriptionJob) (bool, error) {
	_, span := tracer.Start(ctx, "orchestrator.idempotency_gate")
	defer span.End()

	var version *domain.AssetVersion
	err := o.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		v, err := o.db.GetVersionByID(dbc, job.VersionID)
		version = v
		return err
	})
	if err != nil {
		return false, pipelineerr.New(pipelineerr.KindInternal, "orchestrator.idempotencyGate", err)
	}
	if version == nil {
		return false, pipelineerr.New(pipelineerr.KindNotFound, "orchestrator.idempotencyGate", fmt.Errorf("version %s not found", job.VersionID))
	}
	switch version.ProcessingStatus {
	case domain.VersionStatusPublished:
		return true, nil
	}
	switch version.PublishState {
	case domain.PublishStateActive, domain.PublishStateArchived:
		return true, nil
	}
	return false, nil
}

// fetchAndTranscribe implements phase 2.
func (o *Orchestrator) fetchAndTranscribe(ctx context.Context, job domain.TranscriptionJob) (*asr.Result, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.fetch_transcribe")
	defer span.End()

	var asset *domain.Asset
	if err := o.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		if err := o.db.UpdateAssetFields(dbc, job.AssetID, map[string]interface{}{
			"status": domain.AssetStatusTranscribing,
		}); err != nil {
			return err
		}
		a, err := o.db.GetAssetByID(dbc, job.AssetID)
		asset = a
		return err
	}); err != nil {
		return nil, pipelineerr.New(pipelineerr.KindInternal, "orchestrator.fetchAndTranscribe", err)
	}
	if asset == nil {
		return nil, pipelineerr.New(pipelineerr.KindNotFound, "orchestrator.fetchAndTranscribe", fmt.Errorf("asset %s not found", job.AssetID))
	}

	audio, err := o.objects.Get(ctx, asset.Bucket, asset.ObjectKey)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindTransientNetwork, "orchestrator.fetchAndTranscribe", err)
	}

	cfg := asr.Config{
		LanguageHint:          job.EnginePolicy.LanguageHint,
		EnableDiarization:     job.EnginePolicy.DiarizationEnabled,
		EnableWordTimeOffsets: true,
		EnableAutoPunctuation: true,
	}
	result, err := o.asrEngine.Transcribe(ctx, audio, asset.ContentType, cfg)
	if err != nil {
		return nil, err // ASR engines return already-classified *pipelineerr.Error
	}
	return result, nil
}

// segment implements phase 3 and writes the resulting rows at STAGING.
func (o *Orchestrator) segment(ctx context.Context, job domain.TranscriptionJob, result *asr.Result) ([]domain.Segment, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.segment")
	defer span.End()

	strategy := chooseStrategy(job.EnginePolicy.ForceChunkingStrategy, result.DurationMs, job.EnginePolicy.ComputeThresholdSeconds)
	segments := buildSegments(job.VersionID, job.AssetID, result.Words, strategy)

	err := o.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		if err := o.db.UpsertSegments(dbc, segments); err != nil {
			return err
		}
		return o.db.UpdateAssetFields(dbc, job.AssetID, map[string]interface{}{
			"status": domain.AssetStatusTranscribed,
		})
	})
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindInternal, "orchestrator.segment", err)
	}
	return segments, nil
}

// embedPhase implements phase 4: batch-embed segment text and write
// embeddings at STAGING, bound 1:1 to their segment.
func (o *Orchestrator) embedPhase(ctx context.Context, job domain.TranscriptionJob, segments []domain.Segment) error {
	ctx, span := tracer.Start(ctx, "orchestrator.embed")
	defer span.End()

	if o.embedder == nil || len(segments) == 0 {
		return nil
	}

	embeddings := make([]domain.Embedding, 0, len(segments))
	for start := 0; start < len(segments); start += o.cfg.EmbedBatchSize {
		end := start + o.cfg.EmbedBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]
		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.Text
		}

		vectors, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			return err // embedders return already-classified *pipelineerr.Error
		}
		if len(vectors) != len(batch) {
			return pipelineerr.New(pipelineerr.KindEngineConfig, "orchestrator.embedPhase",
				fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch)))
		}
		for i, s := range batch {
			if len(vectors[i]) != o.embedder.Dimension() {
				return pipelineerr.New(pipelineerr.KindEngineConfig, "orchestrator.embedPhase",
					fmt.Errorf("embedding dimension %d does not match declared dimension %d", len(vectors[i]), o.embedder.Dimension()))
			}
			embeddings = append(embeddings, domain.Embedding{
				ID:         domain.EmbeddingID(s.ID),
				AssetID:    s.AssetID,
				VersionID:  s.VersionID,
				SegmentID:  s.ID,
				Vector:     domain.Vector(vectors[i]),
				Model:      o.embedder.Name(),
				Dimension:  o.embedder.Dimension(),
				Visibility: domain.PublishStateStaging,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}

	return o.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		return o.db.UpsertEmbeddings(dbc, embeddings)
	})
}
