// Package qdrant is the optional ANN accelerator adapter, speaking
// Qdrant's REST API directly (no vendor SDK), mirroring the teacher's
// pinecone/qdrant vector store idiom.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mediavault/transcript-pipeline/internal/platform/ctxutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/vectorindex"
)

const maxErrorBodyBytes = 1024

type index struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func New(log *logger.Logger, cfg Config) (vectorindex.Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	idx := &index{
		log:     log.With("service", "qdrant.Index"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	idx.log.Info("qdrant index selected", "url", idx.baseURL, "collection", cfg.Collection, "vector_dim", cfg.VectorDim)
	return idx, nil
}

func (i *index) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"
	req := map[string]any{"vectors": map[string]any{"size": i.cfg.VectorDim, "distance": "Cosine"}}
	return i.doJSON(ctx, op, http.MethodPut, "/collections/"+i.cfg.Collection, req, nil)
}

func (i *index) Upsert(ctx context.Context, points []vectorindex.Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	qpoints := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return opErr(op, OperationErrorValidation, "point id required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", p.ID), nil)
		}
		qpoints = append(qpoints, map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"asset_id":   p.AssetID,
				"version_id": p.VersionID,
				"segment_id": p.SegmentID,
				"visible":    p.Visible,
			},
		})
	}
	req := map[string]any{"points": qpoints}
	return i.doJSON(ctx, op, http.MethodPut, "/collections/"+i.cfg.Collection+"/points?wait=true", req, nil)
}

func (i *index) Delete(ctx context.Context, ids []string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	req := map[string]any{"points": ids}
	return i.doJSON(ctx, op, http.MethodPost, "/collections/"+i.cfg.Collection+"/points/delete?wait=true", req, nil)
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (i *index) Query(ctx context.Context, assetID string, vector []float32, topK int) ([]vectorindex.Match, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 10
	}
	must := []map[string]any{
		{"key": "visible", "match": map[string]any{"value": true}},
	}
	if strings.TrimSpace(assetID) != "" {
		// Asset-scoped lookups (re-indexing, debugging) narrow the filter;
		// the query layer's global semantic search leaves assetID empty.
		must = append(must, map[string]any{"key": "asset_id", "match": map[string]any{"value": assetID}})
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter":       map[string]any{"must": must},
	}
	var results []searchResultItem
	if err := i.doJSON(ctx, op, http.MethodPost, "/collections/"+i.cfg.Collection+"/points/search", req, &results); err != nil {
		return nil, err
	}
	out := make([]vectorindex.Match, 0, len(results))
	for _, r := range results {
		segID, _ := r.Payload["segment_id"].(string)
		if segID == "" {
			continue
		}
		out = append(out, vectorindex.Match{SegmentID: segID, Score: r.Score})
	}
	return out, nil
}

func (i *index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, i.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(req)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBodyBytes {
		b = b[:maxErrorBodyBytes]
	}
	return string(b)
}
