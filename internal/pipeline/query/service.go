// Package query is the thin orchestration layer atop store.Database's three
// search primitives (spec §4.5): request validation and pagination defaults
// live here so the HTTP layer stays a pure marshal/unmarshal shim.
package query

import (
	"context"
	"fmt"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Request is the caller-facing search request (spec §6).
type Request struct {
	Mode      store.SearchMode
	Text      string
	Vector    []float32
	Bucket    string
	Speaker   string
	Limit     int
	Offset    int
	WeightKW  float64
	WeightSem float64
	Dimension int
}

// Response is the caller-facing search result (spec §6).
type Response struct {
	Hits  []store.SearchHit `json:"hits"`
	Total int               `json:"total"`
	Limit int               `json:"limit"`
	Offset int              `json:"offset"`
}

type Service struct {
	log       *logger.Logger
	db        store.Database
	embedder  embed.Embedder
	vectorDim int
}

func NewService(log *logger.Logger, db store.Database, embedder embed.Embedder, vectorDim int) *Service {
	return &Service{log: log.With("service", "query.Service"), db: db, embedder: embedder, vectorDim: vectorDim}
}

// Search resolves the request's query vector (spec §6's wire schema carries
// only the query text `q`, never a vector) before delegating to the
// store.Database search primitives.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	switch req.Mode {
	case store.SearchKeyword, store.SearchSemantic, store.SearchHybrid:
	default:
		return nil, pipelineerr.New(pipelineerr.KindInvalidInput, "query.Search", errInvalidMode(req.Mode))
	}

	needsVector := req.Mode == store.SearchSemantic || req.Mode == store.SearchHybrid
	if needsVector && len(req.Vector) == 0 && req.Text != "" {
		vector, err := s.embedQuery(ctx, req.Text)
		if err != nil {
			if req.Mode == store.SearchSemantic {
				return nil, err
			}
			// hybrid degrades to keyword-only if the query can't be embedded.
			s.log.Warn("hybrid search falling back to keyword-only", "error", err)
		} else {
			req.Vector = vector
		}
	}

	if err := s.validate(req); err != nil {
		return nil, err
	}

	q := store.SearchQuery{
		Text:      req.Text,
		Vector:    req.Vector,
		Bucket:    req.Bucket,
		Speaker:   req.Speaker,
		Limit:     normalizeLimit(req.Limit),
		Offset:    normalizeOffset(req.Offset),
		WeightKW:  req.WeightKW,
		WeightSem: req.WeightSem,
	}

	var (
		hits  []store.SearchHit
		total int
		err   error
	)
	switch req.Mode {
	case store.SearchKeyword:
		hits, total, err = s.db.KeywordSearch(ctx, q)
	case store.SearchSemantic:
		hits, total, err = s.db.SemanticSearch(ctx, q)
	case store.SearchHybrid:
		if q.WeightKW == 0 && q.WeightSem == 0 {
			q.WeightKW, q.WeightSem = 0.5, 0.5
		}
		hits, total, err = s.db.HybridSearch(ctx, q)
	default:
		return nil, pipelineerr.New(pipelineerr.KindInvalidInput, "query.Search", errInvalidMode(req.Mode))
	}
	if err != nil {
		return nil, err
	}

	return &Response{Hits: hits, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// embedQuery turns free-text into the vector SemanticSearch/HybridSearch
// need, mirroring how the orchestrator embeds segment text at ingest time.
func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, pipelineerr.New(pipelineerr.KindEngineConfig, "query.embedQuery", errNoEmbedder)
	}
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.KindTransientNetwork, "query.embedQuery", err)
	}
	if len(vectors) == 0 {
		return nil, pipelineerr.New(pipelineerr.KindInternal, "query.embedQuery", fmt.Errorf("embedder returned no vectors for query text"))
	}
	return vectors[0], nil
}

func (s *Service) validate(req Request) error {
	if req.Mode != store.SearchKeyword && req.Mode != store.SearchSemantic && req.Mode != store.SearchHybrid {
		return pipelineerr.New(pipelineerr.KindInvalidInput, "query.validate", errInvalidMode(req.Mode))
	}
	if (req.Mode == store.SearchKeyword || req.Mode == store.SearchHybrid) && req.Text == "" {
		return pipelineerr.New(pipelineerr.KindInvalidInput, "query.validate", errEmptyQuery)
	}
	if req.Mode == store.SearchSemantic || req.Mode == store.SearchHybrid {
		if len(req.Vector) == 0 {
			if req.Mode == store.SearchSemantic {
				return pipelineerr.New(pipelineerr.KindInvalidInput, "query.validate", errMissingVector)
			}
		} else if s.vectorDim > 0 && len(req.Vector) != s.vectorDim {
			return pipelineerr.New(pipelineerr.KindInvalidInput, "query.validate", errDimensionMismatch(len(req.Vector), s.vectorDim))
		}
	}
	return nil
}

func normalizeLimit(l int) int {
	if l <= 0 {
		return defaultLimit
	}
	if l > maxLimit {
		return maxLimit
	}
	return l
}

func normalizeOffset(o int) int {
	if o < 0 {
		return 0
	}
	return o
}
