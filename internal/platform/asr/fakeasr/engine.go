// Package fakeasr is the local/test asr.Engine adapter. It derives a
// deterministic transcript from the audio payload's bytes so ingest and
// orchestrator tests do not depend on a real speech backend.
package fakeasr

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
)

type engine struct {
	wordsPerSecond int
}

func New() asr.Engine {
	return &engine{wordsPerSecond: 2}
}

func (e *engine) Name() string { return "fake_asr" }
func (e *engine) Close() error { return nil }

func (e *engine) Transcribe(ctx context.Context, audio []byte, contentType string, cfg asr.Config) (*asr.Result, error) {
	if len(audio) == 0 {
		return &asr.Result{Engine: e.Name(), PrimaryText: ""}, nil
	}

	sum := sha256.Sum256(audio)
	wordCount := 20 + int(sum[0])%40
	durationMs := int64(wordCount) * 1000 / int64(e.wordsPerSecond)

	words := make([]asr.Word, 0, wordCount)
	msPerWord := durationMs / int64(wordCount)
	var speaker *string
	for i := 0; i < wordCount; i++ {
		if cfg.EnableDiarization {
			tag := fmt.Sprintf("speaker-%d", (i/8)%maxInt(cfg.MaxSpeakerCount, 1))
			speaker = &tag
		}
		words = append(words, asr.Word{
			Text:       fmt.Sprintf("word%02x", sum[i%len(sum)]),
			StartMs:    int64(i) * msPerWord,
			EndMs:      int64(i+1) * msPerWord,
			Speaker:    speaker,
			Confidence: 0.9,
		})
	}

	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w.Text
	}

	return &asr.Result{
		Engine:      e.Name(),
		PrimaryText: text,
		Words:       words,
		DurationMs:  durationMs,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
