// Package retry implements the retry/quarantine manager (spec §4.4):
// classifying a job failure, scheduling backoff redelivery, or parking the
// job in the DLQ with a triage recommendation.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
	"github.com/mediavault/transcript-pipeline/internal/platform/pointers"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
)

// Policy holds the backoff/attempt knobs from spec §4.4, each overridable
// via environment for deployment tuning.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func PolicyFromEnv() Policy {
	return Policy{
		MaxAttempts: envutil.Int("RETRY_MAX_ATTEMPTS", 5),
		BaseDelay:   envutil.Duration("RETRY_BASE_DELAY", time.Second),
		MaxDelay:    envutil.Duration("RETRY_MAX_DELAY", 300*time.Second),
	}
}

type triageInfo struct {
	state  domain.TriageState
	action string
}

var triageTable = map[pipelineerr.Kind]triageInfo{
	pipelineerr.KindMediaFormat:        {domain.TriageNeedsMediaFix, "Re-encode with supported codec or repair corruption"},
	pipelineerr.KindEngineConfig:       {domain.TriageNeedsEngineTuning, "Review engine configuration or choose alternative engine"},
	pipelineerr.KindPermanentDownstream: {domain.TriageQuarantined, "Manual investigation required"},
}

var exhaustedTriage = triageInfo{domain.TriageQuarantined, "Manual investigation — retries exhausted"}

type Manager struct {
	log    *logger.Logger
	db     store.Database
	jobs   queue.Queue
	policy Policy
	rand   *rand.Rand
}

func NewManager(log *logger.Logger, db store.Database, jobs queue.Queue, policy Policy) *Manager {
	return &Manager{
		log:    log.With("service", "retry.Manager"),
		db:     db,
		jobs:   jobs,
		policy: policy,
		rand:   rand.New(rand.NewSource(1)),
	}
}

// HandleFailure routes a failed job to redelivery or the DLQ per spec §4.4.
// job is the job that just failed; failErr should be a *pipelineerr.Error (a
// bare error is classified as Internal, which is non-retryable).
func (m *Manager) HandleFailure(ctx context.Context, job domain.TranscriptionJob, failErr error) error {
	kind := pipelineerr.KindOf(failErr)
	retryable := kind.Retryable() && job.Attempt+1 < m.policy.MaxAttempts

	if retryable {
		return m.scheduleRetry(ctx, job, failErr, kind)
	}
	return m.quarantine(ctx, job, failErr, kind)
}

func (m *Manager) scheduleRetry(ctx context.Context, job domain.TranscriptionJob, failErr error, kind pipelineerr.Kind) error {
	delay := m.backoff(job.Attempt)

	next := job
	next.Attempt = job.Attempt + 1
	next.IdempotencyKey = domain.IdempotencyKey(job.AssetID, job.VersionID, next.Attempt)
	next.ScheduledAt = time.Now().UTC().Add(delay)

	err := m.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		return m.db.UpdateAssetFields(dbc, job.AssetID, map[string]interface{}{
			"status":     domain.AssetStatusPendingRetry,
			"last_error": failErr.Error(),
		})
	})
	if err != nil {
		return fmt.Errorf("retry.scheduleRetry: update asset: %w", err)
	}

	if err := m.jobs.EnqueueDelayed(ctx, next, delay); err != nil {
		return fmt.Errorf("retry.scheduleRetry: enqueue: %w", err)
	}
	m.log.Info("job scheduled for retry",
		"asset_id", job.AssetID, "version_id", job.VersionID, "attempt", next.Attempt,
		"delay_ms", delay.Milliseconds(), "kind", kind)
	return nil
}

func (m *Manager) quarantine(ctx context.Context, job domain.TranscriptionJob, failErr error, kind pipelineerr.Kind) error {
	info, ok := triageTable[kind]
	if !ok {
		info = exhaustedTriage
	}

	return m.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		item := &domain.DLQItem{
			ID:           uuid.New(),
			JobSnapshot:  job,
			AssetID:      job.AssetID,
			VersionID:    job.VersionID,
			ErrorCode:    string(kind),
			ErrorMessage: failErr.Error(),
			Retryable:    kind.Retryable(),
		}
		if err := m.db.AddDLQItem(dbc, item); err != nil {
			return fmt.Errorf("retry.quarantine: add dlq item: %w", err)
		}
		if err := m.db.UpdateAssetFields(dbc, job.AssetID, map[string]interface{}{
			"status":             domain.AssetStatusQuarantined,
			"triage_state":       pointers.Ptr(info.state),
			"recommended_action": pointers.Ptr(info.action),
			"last_error":         failErr.Error(),
			"attempt_count":      job.Attempt + 1,
		}); err != nil {
			return fmt.Errorf("retry.quarantine: update asset: %w", err)
		}
		m.log.Warn("job quarantined",
			"asset_id", job.AssetID, "version_id", job.VersionID, "kind", kind, "triage_state", info.state)
		return nil
	})
}

// backoff computes min(BASE*2^attempt, MAX_DELAY) ± 25% jitter (spec §4.4).
func (m *Manager) backoff(attempt int) time.Duration {
	raw := float64(m.policy.BaseDelay) * math.Pow(2, float64(attempt))
	capped := math.Min(raw, float64(m.policy.MaxDelay))
	jitter := 1 + (m.rand.Float64()*2-1)*0.25
	d := time.Duration(capped * jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// Retry implements the external-facing "Retry" triage operation (spec §4.4):
// a fresh job at attempt 0 with a new idempotency-key suffix.
func (m *Manager) Retry(ctx context.Context, assetID uuid.UUID) error {
	var job domain.TranscriptionJob
	var versionID uuid.UUID
	err := m.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		asset, err := m.db.GetAssetByID(dbc, assetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return pipelineerr.New(pipelineerr.KindNotFound, "retry.Retry", fmt.Errorf("asset %s not found", assetID))
		}
		item, err := m.db.GetLatestDLQItemByAsset(dbc, assetID)
		if err != nil {
			return err
		}
		if item != nil {
			versionID = item.VersionID
		} else if asset.CurrentVersionID != nil {
			versionID = *asset.CurrentVersionID
		}
		if err := m.db.UpdateAssetFields(dbc, assetID, map[string]interface{}{
			"status":             domain.AssetStatusPendingRetry,
			"triage_state":       nil,
			"recommended_action": nil,
			"last_error":         "",
		}); err != nil {
			return err
		}
		if item != nil {
			if err := m.db.RemoveDLQItem(dbc, item.ID); err != nil {
				return err
			}
		}
		job = domain.TranscriptionJob{
			JobID:          uuid.New(),
			AssetID:        assetID,
			VersionID:      versionID,
			EnginePolicy:   domain.EnginePolicy{Engine: asset.Engine, ExecutionMode: domain.ExecutionModeAsync},
			Attempt:        0,
			IdempotencyKey: domain.IdempotencyKey(assetID, versionID, 0) + ":retry:" + uuid.NewString(),
			EnqueuedAt:     time.Now().UTC(),
			ScheduledAt:    time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return err
	}
	return m.jobs.Enqueue(ctx, job)
}

// Skip implements the external-facing "Skip" triage operation (spec §4.4):
// status=FAILED, last-error retained, DLQ entry removed.
func (m *Manager) Skip(ctx context.Context, assetID uuid.UUID) error {
	return m.db.RunInTx(ctx, func(dbc dbctx.Context) error {
		item, err := m.db.GetLatestDLQItemByAsset(dbc, assetID)
		if err != nil {
			return err
		}
		if err := m.db.UpdateAssetFields(dbc, assetID, map[string]interface{}{
			"status": domain.AssetStatusFailed,
		}); err != nil {
			return err
		}
		if item != nil {
			return m.db.RemoveDLQItem(dbc, item.ID)
		}
		return nil
	})
}
