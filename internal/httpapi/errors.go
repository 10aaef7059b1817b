package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// writeError maps a domain error to an HTTP status and an OpenAI-shaped
// error body, the common denominator every client this proxy speaks to
// already understands.
func writeError(c *gin.Context, err error) {
	status := domain.StatusCode(err)
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": err.Error(),
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch status {
	case 400:
		return "invalid_request_error"
	case 401:
		return "authentication_error"
	case 502, 503:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
