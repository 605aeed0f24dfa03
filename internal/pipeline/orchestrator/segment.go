package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
)

// defaultFixedWindowMs is W from spec §4.2 phase 3.
const defaultFixedWindowMs = 5000

// chooseStrategy implements the default/fallback/forced selection rule from
// spec §4.2 phase 3.
func chooseStrategy(forced domain.ChunkingStrategy, durationMs int64, computeThresholdSeconds float64) domain.ChunkingStrategy {
	if forced != "" {
		return forced
	}
	if computeThresholdSeconds > 0 && float64(durationMs)/1000.0 > computeThresholdSeconds {
		return domain.ChunkingFixedWindow
	}
	return domain.ChunkingSentence
}

// buildSegments dispatches to the chosen chunking strategy and stamps every
// resulting segment with its deterministic id and STAGING visibility.
func buildSegments(versionID, assetID uuid.UUID, words []asr.Word, strategy domain.ChunkingStrategy) []domain.Segment {
	var raw []domain.Segment
	switch strategy {
	case domain.ChunkingFixedWindow:
		raw = fixedWindowSegments(words, defaultFixedWindowMs)
	default:
		raw = sentenceSegments(words)
	}

	now := time.Now().UTC()
	out := make([]domain.Segment, 0, len(raw))
	for i := range raw {
		s := raw[i]
		s.ID = domain.SegmentID(versionID, i)
		s.AssetID = assetID
		s.VersionID = versionID
		s.Visibility = domain.PublishStateStaging
		s.Strategy = strategy
		s.CreatedAt = now
		out = append(out, s)
	}
	return out
}

// sentenceSegments re-splits the word stream at `. ! ?` terminators,
// carrying the last contributing word's confidence and the majority speaker
// of the sentence through to the segment (spec §4.2 phase 3).
func sentenceSegments(words []asr.Word) []domain.Segment {
	if len(words) == 0 {
		return nil
	}
	var segs []domain.Segment
	var buf []asr.Word
	flushSentence := func() {
		if len(buf) == 0 {
			return
		}
		segs = append(segs, sentenceSegmentFromWords(buf))
		buf = nil
	}
	for _, w := range words {
		buf = append(buf, w)
		trimmed := strings.TrimSpace(w.Text)
		if trimmed != "" {
			last := trimmed[len(trimmed)-1]
			if last == '.' || last == '!' || last == '?' {
				flushSentence()
			}
		}
	}
	flushSentence()
	return segs
}

// fixedWindowSegments buckets words into W-millisecond windows anchored at
// the first word's start time, propagating the majority speaker per window
// and averaging confidence across contributing words (spec §4.2 phase 3).
func fixedWindowSegments(words []asr.Word, windowMs int64) []domain.Segment {
	if len(words) == 0 {
		return nil
	}
	origin := words[0].StartMs
	buckets := map[int64][]asr.Word{}
	var order []int64
	for _, w := range words {
		idx := (w.StartMs - origin) / windowMs
		if _, ok := buckets[idx]; !ok {
			order = append(order, idx)
		}
		buckets[idx] = append(buckets[idx], w)
	}
	segs := make([]domain.Segment, 0, len(order))
	for _, idx := range order {
		segs = append(segs, fixedWindowSegmentFromWords(buckets[idx]))
	}
	return segs
}

// sentenceSegmentFromWords carries the last contributing word's confidence
// through as the sentence's representative value, but the majority speaker
// of the spanning words rather than just the last one (spec §4.2 phase 3,
// spec §9's resolution of the speaker-propagation open question).
func sentenceSegmentFromWords(words []asr.Word) domain.Segment {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.Text)
	}
	last := words[len(words)-1]
	return domain.Segment{
		StartMs:    words[0].StartMs,
		EndMs:      last.EndMs,
		Text:       sb.String(),
		Speaker:    majoritySpeaker(words),
		Confidence: last.Confidence,
	}
}

func fixedWindowSegmentFromWords(words []asr.Word) domain.Segment {
	var sb strings.Builder
	var confSum float64
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.Text)
		confSum += w.Confidence
	}
	return domain.Segment{
		StartMs:    words[0].StartMs,
		EndMs:      words[len(words)-1].EndMs,
		Text:       sb.String(),
		Speaker:    majoritySpeaker(words),
		Confidence: confSum / float64(len(words)),
	}
}

// majoritySpeaker returns the speaker label with the most contributing
// words, breaking ties by first occurrence order.
func majoritySpeaker(words []asr.Word) *string {
	speakerCount := map[string]int{}
	for _, w := range words {
		if w.Speaker != nil {
			speakerCount[*w.Speaker]++
		}
	}
	var speaker *string
	best := -1
	for _, w := range words {
		if w.Speaker == nil {
			continue
		}
		if count := speakerCount[*w.Speaker]; count > best {
			best = count
			s := *w.Speaker
			speaker = &s
		}
	}
	return speaker
}
