package query

import (
	"context"
	"testing"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
	"github.com/mediavault/transcript-pipeline/internal/pipeline/store/sqlitestore"
	"github.com/mediavault/transcript-pipeline/internal/platform/embed/fakeembed"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

func TestValidateRejectsUnknownMode(t *testing.T) {
	s := &Service{vectorDim: 8}
	err := s.validate(Request{Mode: "bogus", Text: "x"})
	if pipelineerr.KindOf(err) != pipelineerr.KindInvalidInput {
		t.Fatalf("want InvalidInput got=%v", err)
	}
}

func TestValidateRejectsEmptyKeywordQuery(t *testing.T) {
	s := &Service{vectorDim: 8}
	err := s.validate(Request{Mode: store.SearchKeyword, Text: ""})
	if err == nil {
		t.Fatalf("want error for empty keyword query")
	}
}

func TestValidateRejectsMissingSemanticVector(t *testing.T) {
	s := &Service{vectorDim: 8}
	err := s.validate(Request{Mode: store.SearchSemantic})
	if err == nil {
		t.Fatalf("want error for missing semantic vector")
	}
}

func TestValidateAllowsHybridWithoutVector(t *testing.T) {
	s := &Service{vectorDim: 8}
	err := s.validate(Request{Mode: store.SearchHybrid, Text: "keyword only"})
	if err != nil {
		t.Fatalf("hybrid without vector should fall back to keyword-only: %v", err)
	}
}

func TestValidateRejectsDimensionMismatch(t *testing.T) {
	s := &Service{vectorDim: 8}
	err := s.validate(Request{Mode: store.SearchSemantic, Vector: make([]float32, 4)})
	if err == nil {
		t.Fatalf("want error for dimension mismatch")
	}
}

func TestValidateAcceptsMatchingDimension(t *testing.T) {
	s := &Service{vectorDim: 4}
	err := s.validate(Request{Mode: store.SearchSemantic, Vector: make([]float32, 4)})
	if err != nil {
		t.Fatalf("want no error, got %v", err)
	}
}

func TestNormalizeLimitDefaultsAndCaps(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{10, 10},
		{1000, maxLimit},
	}
	for _, c := range cases {
		if got := normalizeLimit(c.in); got != c.want {
			t.Fatalf("normalizeLimit(%d): want=%d got=%d", c.in, c.want, got)
		}
	}
}

func newTestService(t *testing.T, vectorDim int) *Service {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	db, err := sqlitestore.New(log, "")
	if err != nil {
		t.Fatalf("sqlitestore.New: %v", err)
	}
	return NewService(log, db, fakeembed.New(vectorDim), vectorDim)
}

func TestSearchDerivesVectorFromQueryTextForSemanticMode(t *testing.T) {
	s := newTestService(t, 8)
	resp, err := s.Search(context.Background(), Request{Mode: store.SearchSemantic, Text: "lecture on go generics"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("expected zero hits against an empty store, got %d", resp.Total)
	}
}

func TestSearchDerivesVectorFromQueryTextForHybridMode(t *testing.T) {
	s := newTestService(t, 8)
	resp, err := s.Search(context.Background(), Request{Mode: store.SearchHybrid, Text: "lecture on go generics"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Total != 0 {
		t.Fatalf("expected zero hits against an empty store, got %d", resp.Total)
	}
}

func TestSearchSemanticWithoutQueryTextFailsValidation(t *testing.T) {
	s := newTestService(t, 8)
	_, err := s.Search(context.Background(), Request{Mode: store.SearchSemantic})
	if pipelineerr.KindOf(err) != pipelineerr.KindInvalidInput {
		t.Fatalf("want InvalidInput got=%v", err)
	}
}

func TestSearchSemanticWithoutEmbedderSurfacesEngineConfigError(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	db, err := sqlitestore.New(log, "")
	if err != nil {
		t.Fatalf("sqlitestore.New: %v", err)
	}
	s := NewService(log, db, nil, 8)
	_, err = s.Search(context.Background(), Request{Mode: store.SearchSemantic, Text: "no embedder wired"})
	if pipelineerr.KindOf(err) != pipelineerr.KindEngineConfig {
		t.Fatalf("want EngineConfig got=%v", err)
	}
}

func TestNormalizeOffsetClampsNegative(t *testing.T) {
	if got := normalizeOffset(-1); got != 0 {
		t.Fatalf("normalizeOffset(-1): want=0 got=%d", got)
	}
	if got := normalizeOffset(7); got != 7 {
		t.Fatalf("normalizeOffset(7): want=7 got=%d", got)
	}
}
