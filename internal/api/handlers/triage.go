package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/api/response"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/retry"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/dbctx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

type TriageHandler struct {
	log     *logger.Logger
	db      store.Database
	manager *retry.Manager
}

func NewTriageHandler(log *logger.Logger, db store.Database, manager *retry.Manager) *TriageHandler {
	return &TriageHandler{log: log.With("handler", "TriageHandler"), db: db, manager: manager}
}

type triagedAssetDTO struct {
	AssetID           string  `json:"asset_id"`
	Bucket            string  `json:"bucket"`
	ObjectKey         string  `json:"object_key"`
	Status            string  `json:"status"`
	TriageState       *string `json:"triage_state,omitempty"`
	RecommendedAction *string `json:"recommended_action,omitempty"`
	LastError         string  `json:"last_error,omitempty"`
	AttemptCount      int     `json:"attempt_count"`
}

// List handles GET /api/triage: quarantined assets appear in a triage listing
// (spec §7).
func (h *TriageHandler) List(c *gin.Context) {
	var assets []*triagedAssetDTO
	err := h.db.RunInTx(c.Request.Context(), func(dbc dbctx.Context) error {
		rows, err := h.db.ListQuarantinedAssets(dbc)
		if err != nil {
			return err
		}
		for _, a := range rows {
			var state *string
			if a.TriageState != nil {
				s := string(*a.TriageState)
				state = &s
			}
			assets = append(assets, &triagedAssetDTO{
				AssetID:           a.ID.String(),
				Bucket:            a.Bucket,
				ObjectKey:         a.ObjectKey,
				Status:            string(a.Status),
				TriageState:       state,
				RecommendedAction: a.RecommendedAction,
				LastError:         a.LastError,
				AttemptCount:      a.AttemptCount,
			})
		}
		return nil
	})
	if err != nil {
		response.RespondPipelineError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assets": assets})
}

// Retry handles POST /api/triage/:asset_id/retry.
func (h *TriageHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		response.RespondError(c, 400, string(pipelineerr.KindInvalidInput), err)
		return
	}
	if err := h.manager.Retry(c.Request.Context(), id); err != nil {
		response.RespondPipelineError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "retrying"})
}

// Skip handles POST /api/triage/:asset_id/skip.
func (h *TriageHandler) Skip(c *gin.Context) {
	id, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		response.RespondError(c, 400, string(pipelineerr.KindInvalidInput), err)
		return
	}
	if err := h.manager.Skip(c.Request.Context(), id); err != nil {
		response.RespondPipelineError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "skipped"})
}
