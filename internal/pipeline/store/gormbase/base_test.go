package gormbase

import (
	"testing"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/store"
)

func TestTokenizeLowercasesAndStripsPunctuation(t *testing.T) {
	got := tokenize(" Hello, World! ")
	want := []string{"hello", "world"}
	if len(got) != len(want) {
		t.Fatalf("tokenize: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenize[%d]: want=%q got=%q", i, want[i], got[i])
		}
	}
}

func TestKeywordScoreIsFractionOfMatchedTokens(t *testing.T) {
	tokens := []string{"quick", "fox"}
	score := keywordScore("the quick brown fox jumps", tokens)
	if score != 1.0 {
		t.Fatalf("keywordScore: want=1.0 got=%v", score)
	}

	score = keywordScore("the quick brown dog jumps", tokens)
	if score != 0.5 {
		t.Fatalf("keywordScore: want=0.5 got=%v", score)
	}

	score = keywordScore("nothing relevant here", tokens)
	if score != 0 {
		t.Fatalf("keywordScore: want=0 got=%v", score)
	}
}

func TestPaginateClampsLimitAndOffset(t *testing.T) {
	hits := make([]store.SearchHit, 10)
	for i := range hits {
		hits[i].SegmentID = string(rune('a' + i))
	}

	page, total, err := paginate(hits, store.SearchQuery{Limit: 3, Offset: 2})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if total != 10 {
		t.Fatalf("total: want=10 got=%d", total)
	}
	if len(page) != 3 {
		t.Fatalf("page length: want=3 got=%d", len(page))
	}
	if page[0].SegmentID != hits[2].SegmentID {
		t.Fatalf("page[0]: want=%q got=%q", hits[2].SegmentID, page[0].SegmentID)
	}
}

func TestPaginateOffsetBeyondTotalReturnsEmpty(t *testing.T) {
	hits := make([]store.SearchHit, 3)
	page, total, err := paginate(hits, store.SearchQuery{Limit: 10, Offset: 50})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if total != 3 {
		t.Fatalf("total: want=3 got=%d", total)
	}
	if len(page) != 0 {
		t.Fatalf("page: want empty got=%d", len(page))
	}
}

func TestPaginateDefaultsLimitWhenUnsetOrOversized(t *testing.T) {
	hits := make([]store.SearchHit, 150)
	page, _, err := paginate(hits, store.SearchQuery{Limit: 0, Offset: 0})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(page) != 100 {
		t.Fatalf("default/oversized limit clamp: want=100 got=%d", len(page))
	}
	page, _, err = paginate(hits, store.SearchQuery{Limit: 500, Offset: 0})
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(page) != 100 {
		t.Fatalf("oversized limit clamp: want=100 got=%d", len(page))
	}
}
