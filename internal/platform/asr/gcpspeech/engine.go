// Package gcpspeech is the production asr.Engine adapter, backed by Google
// Cloud Speech-to-Text's long-running recognize API.
package gcpspeech

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/mediavault/transcript-pipeline/internal/platform/asr"
	"github.com/mediavault/transcript-pipeline/internal/platform/ctxutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

type engine struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func New(log *logger.Logger) (asr.Engine, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx := context.Background()
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &engine{log: log.With("service", "gcpspeech.Engine"), client: c, maxRetries: 4}, nil
}

func (e *engine) Name() string { return "gcp_speech" }

func (e *engine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *engine) Transcribe(ctx context.Context, audio []byte, contentType string, cfg asr.Config) (*asr.Result, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if len(audio) == 0 {
		return &asr.Result{Engine: e.Name(), PrimaryText: ""}, nil
	}

	rcfg := buildRecognitionConfig(contentType, cfg)
	req := &speechpb.LongRunningRecognizeRequest{
		Config: rcfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	resp, err := e.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := e.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	return parseResponse(e.Name(), resp), nil
}

func buildRecognitionConfig(contentType string, cfg asr.Config) *speechpb.RecognitionConfig {
	lang := cfg.LanguageHint
	if lang == "" {
		lang = "en-US"
	}
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               lang,
		Encoding:                   inferEncoding(contentType),
		EnableAutomaticPunctuation: cfg.EnableAutoPunctuation,
		EnableWordTimeOffsets:      true,
	}
	if cfg.EnableDiarization {
		rc.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(cfg.MinSpeakerCount),
			MaxSpeakerCount:          int32(cfg.MaxSpeakerCount),
		}
	}
	return rc
}

func inferEncoding(contentType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(contentType)
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func parseResponse(engineName string, resp *speechpb.LongRunningRecognizeResponse) *asr.Result {
	out := &asr.Result{Engine: engineName}
	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	var full strings.Builder
	words := []asr.Word{}
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(text)

		for _, ww := range alt.Words {
			if ww == nil {
				continue
			}
			var spk *string
			if ww.SpeakerTag != 0 {
				s := fmt.Sprintf("speaker-%d", ww.SpeakerTag)
				spk = &s
			}
			words = append(words, asr.Word{
				Text:       ww.Word,
				StartMs:    durToMs(ww.StartTime),
				EndMs:      durToMs(ww.EndTime),
				Speaker:    spk,
				Confidence: float64(ww.Confidence),
			})
		}
	}
	out.PrimaryText = strings.TrimSpace(full.String())
	out.Words = words
	if n := len(words); n > 0 {
		out.DurationMs = words[n-1].EndMs
	}
	return out
}

func durToMs(d *durationpb.Duration) int64 {
	if d == nil {
		return 0
	}
	return d.AsDuration().Milliseconds()
}

func (e *engine) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == e.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
