package orchestrator

import (
	"testing"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
)

func speaker(id string) *string { return &id }

func TestChooseStrategyForcedOverridesThreshold(t *testing.T) {
	got := chooseStrategy(domain.ChunkingFixedWindow, 1000, 600)
	if got != domain.ChunkingFixedWindow {
		t.Fatalf("chooseStrategy: want=%q got=%q", domain.ChunkingFixedWindow, got)
	}
}

func TestChooseStrategyDefaultsToSentenceUnderThreshold(t *testing.T) {
	got := chooseStrategy("", 300_000, 600)
	if got != domain.ChunkingSentence {
		t.Fatalf("chooseStrategy: want=%q got=%q", domain.ChunkingSentence, got)
	}
}

func TestChooseStrategyFallsBackToFixedWindowOverThreshold(t *testing.T) {
	got := chooseStrategy("", 700_000, 600)
	if got != domain.ChunkingFixedWindow {
		t.Fatalf("chooseStrategy: want=%q got=%q", domain.ChunkingFixedWindow, got)
	}
}

func TestChooseStrategyAtExactThresholdStaysSentence(t *testing.T) {
	// durationMs/1000 == computeThresholdSeconds is not "over" the threshold.
	got := chooseStrategy("", 600_000, 600)
	if got != domain.ChunkingSentence {
		t.Fatalf("chooseStrategy: want=%q got=%q", domain.ChunkingSentence, got)
	}
}

func TestSentenceSegmentsCarriesLastWordConfidenceAndMajoritySpeaker(t *testing.T) {
	words := []asr.Word{
		{Text: "Hello", StartMs: 0, EndMs: 100, Speaker: speaker("a"), Confidence: 0.5},
		{Text: "there", StartMs: 50, EndMs: 150, Speaker: speaker("a"), Confidence: 0.6},
		{Text: "world.", StartMs: 100, EndMs: 200, Speaker: speaker("b"), Confidence: 0.9},
	}
	segs := sentenceSegments(words)
	if len(segs) != 1 {
		t.Fatalf("len(segs): want=1 got=%d", len(segs))
	}
	s := segs[0]
	if s.Text != "Hello there world." {
		t.Fatalf("text: want=%q got=%q", "Hello there world.", s.Text)
	}
	if s.Confidence != 0.9 {
		t.Fatalf("confidence: want last-word 0.9 got=%v", s.Confidence)
	}
	if s.Speaker == nil || *s.Speaker != "a" {
		t.Fatalf("speaker: want majority %q got=%v", "a", s.Speaker)
	}
}

func TestSentenceSegmentsSplitsOnMultipleTerminators(t *testing.T) {
	words := []asr.Word{
		{Text: "First.", StartMs: 0, EndMs: 100, Confidence: 1},
		{Text: "Second!", StartMs: 100, EndMs: 200, Confidence: 1},
		{Text: "trailing", StartMs: 200, EndMs: 300, Confidence: 1},
	}
	segs := sentenceSegments(words)
	if len(segs) != 3 {
		t.Fatalf("len(segs): want=3 got=%d", len(segs))
	}
	if segs[2].Text != "trailing" {
		t.Fatalf("trailing segment without terminator: want=%q got=%q", "trailing", segs[2].Text)
	}
}

func TestFixedWindowSegmentsAggregatesMeanConfidenceAndMajoritySpeaker(t *testing.T) {
	words := []asr.Word{
		{Text: "a", StartMs: 0, EndMs: 100, Speaker: speaker("x"), Confidence: 0.2},
		{Text: "b", StartMs: 1000, EndMs: 1100, Speaker: speaker("x"), Confidence: 0.4},
		{Text: "c", StartMs: 2000, EndMs: 2100, Speaker: speaker("y"), Confidence: 0.9},
	}
	segs := fixedWindowSegments(words, 5000)
	if len(segs) != 1 {
		t.Fatalf("len(segs): want=1 got=%d", len(segs))
	}
	s := segs[0]
	wantConf := (0.2 + 0.4 + 0.9) / 3
	if s.Confidence != wantConf {
		t.Fatalf("confidence: want=%v got=%v", wantConf, s.Confidence)
	}
	if s.Speaker == nil || *s.Speaker != "x" {
		t.Fatalf("speaker: want majority %q got=%v", "x", s.Speaker)
	}
}

func TestFixedWindowSegmentsBucketsByWindow(t *testing.T) {
	words := []asr.Word{
		{Text: "a", StartMs: 0, EndMs: 100, Confidence: 1},
		{Text: "b", StartMs: 4999, EndMs: 5000, Confidence: 1},
		{Text: "c", StartMs: 5000, EndMs: 5100, Confidence: 1},
	}
	segs := fixedWindowSegments(words, 5000)
	if len(segs) != 2 {
		t.Fatalf("len(segs): want=2 got=%d", len(segs))
	}
	if segs[0].Text != "a b" {
		t.Fatalf("first window: want=%q got=%q", "a b", segs[0].Text)
	}
	if segs[1].Text != "c" {
		t.Fatalf("second window: want=%q got=%q", "c", segs[1].Text)
	}
}

func TestBuildSegmentsStampsDeterministicIDsAndStaging(t *testing.T) {
	versionID := uuid.New()
	assetID := uuid.New()
	words := []asr.Word{
		{Text: "One.", StartMs: 0, EndMs: 100, Confidence: 1},
		{Text: "Two.", StartMs: 100, EndMs: 200, Confidence: 1},
	}
	segs := buildSegments(versionID, assetID, words, domain.ChunkingSentence)
	if len(segs) != 2 {
		t.Fatalf("len(segs): want=2 got=%d", len(segs))
	}
	for i, s := range segs {
		if s.ID != domain.SegmentID(versionID, i) {
			t.Fatalf("segment[%d].ID: want=%q got=%q", i, domain.SegmentID(versionID, i), s.ID)
		}
		if s.AssetID != assetID {
			t.Fatalf("segment[%d].AssetID mismatch", i)
		}
		if s.VersionID != versionID {
			t.Fatalf("segment[%d].VersionID mismatch", i)
		}
		if s.Visibility != domain.PublishStateStaging {
			t.Fatalf("segment[%d].Visibility: want=%q got=%q", i, domain.PublishStateStaging, s.Visibility)
		}
		if s.Strategy != domain.ChunkingSentence {
			t.Fatalf("segment[%d].Strategy: want=%q got=%q", i, domain.ChunkingSentence, s.Strategy)
		}
		if s.CreatedAt.IsZero() {
			t.Fatalf("segment[%d].CreatedAt: want non-zero", i)
		}
	}
	if segs[0].CreatedAt != segs[1].CreatedAt {
		t.Fatalf("expected all segments in a batch to share one CreatedAt stamp")
	}
}
