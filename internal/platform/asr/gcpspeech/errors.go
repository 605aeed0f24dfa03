package gcpspeech

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

// classifyErr maps a gRPC speech error onto the pipeline's tagged error
// kinds so the orchestrator's retry policy doesn't need to know about gRPC.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	code := status.Code(err)
	switch code {
	case codes.Unavailable, codes.ResourceExhausted:
		return pipelineerr.New(pipelineerr.KindTransientNetwork, "gcpspeech.Transcribe", err)
	case codes.DeadlineExceeded:
		return pipelineerr.New(pipelineerr.KindTimeout, "gcpspeech.Transcribe", err)
	case codes.InvalidArgument:
		return pipelineerr.New(pipelineerr.KindMediaFormat, "gcpspeech.Transcribe", err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return pipelineerr.New(pipelineerr.KindEngineConfig, "gcpspeech.Transcribe", err)
	default:
		return pipelineerr.New(pipelineerr.KindPermanentDownstream, "gcpspeech.Transcribe", err)
	}
}
