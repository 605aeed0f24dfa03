package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediavault/transcript-pipeline/internal/api/response"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/query"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

type SearchHandler struct {
	log     *logger.Logger
	service *query.Service
}

func NewSearchHandler(log *logger.Logger, service *query.Service) *SearchHandler {
	return &SearchHandler{log: log.With("handler", "SearchHandler"), service: service}
}

type searchHitDTO struct {
	AssetID   string  `json:"asset_id"`
	VersionID string  `json:"version_id"`
	SegmentID string  `json:"segment_id"`
	StartMs   int64   `json:"start_ms"`
	EndMs     int64   `json:"end_ms"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
	Speaker   *string `json:"speaker,omitempty"`
	Asset     struct {
		Bucket    string `json:"bucket"`
		ObjectKey string `json:"object_key"`
	} `json:"asset"`
}

// Search handles GET /api/search per spec §6's request/response shapes.
func (h *SearchHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.RespondError(c, 400, string(pipelineerr.KindInvalidInput), errMissingQueryParam)
		return
	}
	mode := store.SearchMode(c.DefaultQuery("type", string(store.SearchKeyword)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	req := query.Request{
		Mode:    mode,
		Text:    q,
		Bucket:  c.Query("bucket"),
		Speaker: c.Query("speaker"),
		Limit:   limit,
		Offset:  offset,
	}
	if wk := c.Query("weight_kw"); wk != "" {
		req.WeightKW, _ = strconv.ParseFloat(wk, 64)
	}
	if ws := c.Query("weight_sem"); ws != "" {
		req.WeightSem, _ = strconv.ParseFloat(ws, 64)
	}

	resp, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		response.RespondPipelineError(c, err)
		return
	}

	hits := make([]searchHitDTO, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		dto := searchHitDTO{
			AssetID:   hit.AssetID.String(),
			VersionID: hit.VersionID.String(),
			SegmentID: hit.SegmentID,
			StartMs:   hit.StartMs,
			EndMs:     hit.EndMs,
			Snippet:   hit.Snippet,
			Score:     hit.Score,
			MatchType: hit.MatchType,
			Speaker:   hit.Speaker,
		}
		dto.Asset.Bucket = hit.Bucket
		dto.Asset.ObjectKey = hit.ObjectKey
		hits = append(hits, dto)
	}

	response.RespondOK(c, gin.H{
		"query":   q,
		"type":    mode,
		"total":   resp.Total,
		"results": hits,
	})
}
