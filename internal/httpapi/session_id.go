package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// resolveSessionID implements spec §6's session id priority: the request
// body's "session_id" field, then the X-Session-Id header, then a
// "session_id" cookie, then a freshly generated id.
func resolveSessionID(c *gin.Context, body map[string]interface{}) string {
	if v, ok := body["session_id"].(string); ok && v != "" {
		return v
	}
	if v := c.GetHeader("X-Session-Id"); v != "" {
		return v
	}
	if v, err := c.Cookie("session_id"); err == nil && v != "" {
		return v
	}
	return uuid.NewString()
}
