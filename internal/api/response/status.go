package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediavault/transcript-pipeline/internal/platform/pipelineerr"
)

// StatusForKind maps a pipelineerr.Kind onto the HTTP status the API surface
// reports it as, mirroring the teacher's apierr.Error{Status,Code,Err} shape
// without carrying an HTTP status inside the domain error type itself.
func StatusForKind(k pipelineerr.Kind) int {
	switch k {
	case pipelineerr.KindInvalidInput:
		return http.StatusBadRequest
	case pipelineerr.KindNotFound:
		return http.StatusNotFound
	case pipelineerr.KindAlreadyExists:
		return http.StatusConflict
	case pipelineerr.KindTimeout:
		return http.StatusGatewayTimeout
	case pipelineerr.KindTransientNetwork, pipelineerr.KindTransientResource:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func RespondPipelineError(c *gin.Context, err error) {
	kind := pipelineerr.KindOf(err)
	RespondError(c, StatusForKind(kind), string(kind), err)
}
