// Package asr defines the transcription engine port (spec §4.6) that the
// orchestrator drives during the fetch+transcribe phase.
package asr

import "context"

// Config carries the engine policy fields the orchestrator resolved for a
// given job (spec §4.2's EnginePolicy) down into the concrete engine.
type Config struct {
	LanguageHint             string
	EnableDiarization        bool
	MinSpeakerCount          int
	MaxSpeakerCount          int
	ForceChunkingStrategy    string
	EnableWordTimeOffsets    bool
	EnableAutoPunctuation    bool
}

// Word is a single ASR-timestamped token, the finest-grained unit the
// orchestrator's segmenter builds transcript segments out of.
type Word struct {
	Text       string
	StartMs    int64
	EndMs      int64
	Speaker    *string
	Confidence float64
}

// Result is what a transcription engine returns for one asset version.
// PrimaryText is the flattened transcript; Words carries per-word timing
// used by both the sentence and fixed-window chunking strategies.
type Result struct {
	Engine      string
	PrimaryText string
	Words       []Word
	DurationMs  int64
}

// Engine is the ASR port. Implementations must be safe to retry: the
// orchestrator re-invokes on transient failure using the same audio.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, contentType string, cfg Config) (*Result, error)
	Close() error
}
