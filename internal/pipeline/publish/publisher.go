// Package publish implements the version publisher (spec §4.3): the sole
// mutator of ACTIVE/ARCHIVED visibility and an asset's current-version-id,
// executed inside one serializable transaction so readers never observe a
// dual-ACTIVE window.
package publish

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

type Publisher struct {
	log *logger.Logger
	db  store.Database
}

func NewPublisher(log *logger.Logger, db store.Database) *Publisher {
	return &Publisher{log: log.With("service", "publish.Publisher"), db: db}
}

// Publish performs the atomic cutover for versionID onto its asset. It is
// idempotent: publishing a version that is already the asset's
// current-version-id is a no-op.
func (p *Publisher) Publish(ctx context.Context, assetID, versionID uuid.UUID) error {
	return p.db.RunSerializableTx(ctx, func(dbc dbctx.Context) error {
		asset, err := p.db.GetAssetByID(dbc, assetID)
		if err != nil {
			return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
		}
		if asset == nil {
			return pipelineerr.New(pipelineerr.KindNotFound, "publish.Publish", fmt.Errorf("asset %s not found", assetID))
		}

		newVersion, err := p.db.GetVersionByID(dbc, versionID)
		if err != nil {
			return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
		}
		if newVersion == nil {
			return pipelineerr.New(pipelineerr.KindNotFound, "publish.Publish", fmt.Errorf("version %s not found", versionID))
		}

		if asset.CurrentVersionID != nil && *asset.CurrentVersionID == versionID {
			// already the active version: nothing to do.
			return nil
		}

		oldVersionID := asset.CurrentVersionID

		// Write the new ACTIVE set first, then flip the pointer, then demote
		// the old set: readers joining on current-version-id see only the new
		// data throughout, satisfying the no-dual-ACTIVE ordering rule even on
		// backends without true cross-table atomicity (spec §4.3).
		if err := p.db.SetVisibilityForVersion(dbc, versionID, domain.PublishStateActive); err != nil {
			return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
		}

		if err := p.db.UpdateAssetFields(dbc, assetID, map[string]interface{}{
			"current_version_id": versionID,
			"status":             domain.AssetStatusIndexed,
		}); err != nil {
			return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
		}

		if err := p.db.UpdateVersionFields(dbc, versionID, map[string]interface{}{
			"processing_status": domain.VersionStatusPublished,
			"publish_state":      domain.PublishStateActive,
		}); err != nil {
			return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
		}

		if oldVersionID != nil && *oldVersionID != versionID {
			if err := p.db.SetVisibilityForVersion(dbc, *oldVersionID, domain.PublishStateArchived); err != nil {
				return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
			}
			if err := p.db.UpdateVersionFields(dbc, *oldVersionID, map[string]interface{}{
				"publish_state": domain.PublishStateArchived,
			}); err != nil {
				return pipelineerr.New(pipelineerr.KindInternal, "publish.Publish", err)
			}
		}

		p.log.Info("version published",
			"asset_id", assetID, "new_version_id", versionID, "old_version_id", oldVersionID)
		return nil
	})
}
