package httpapi

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
)

// decodeBody reads the request body once, unmarshaling it both into dest
// (a wire-format struct) and into a raw map so handlers can recover fields
// the struct doesn't model (session_id, provider-specific extra_body).
func decodeBody(c *gin.Context, dest interface{}) (map[string]interface{}, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// extraBody returns body with every field the wire struct already models
// removed, leaving only passthrough extra_body content.
func extraBody(body map[string]interface{}, modeled ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	skip := make(map[string]bool, len(modeled))
	for _, k := range modeled {
		skip[k] = true
	}
	for k, v := range body {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}
