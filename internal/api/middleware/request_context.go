package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mediavault/transcript-pipeline/internal/platform/ctxutil"
)

func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.Default(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
