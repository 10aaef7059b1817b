package httpapi

import (
	"github.com/gin-gonic/gin"
)

// HandleListModels serves GET /v1/models: the aggregate "connector:model"
// catalog across every registered connector, enriched with advisory
// capabilities where known (spec §6, §9).
func (d *Dependencies) HandleListModels(c *gin.Context) {
	models := d.Registry.AggregateModels()
	data := make([]gin.H, 0, len(models))
	for _, id := range models {
		entry := gin.H{"id": id, "object": "model"}
		if caps, ok := d.Registry.Capabilities(id); ok {
			entry["context_window"] = caps.ContextWindow
			entry["max_output_tokens"] = caps.MaxOutputTokens
			entry["supports_tools"] = caps.SupportsTools
			entry["supports_images"] = caps.SupportsImages
		}
		data = append(data, entry)
	}
	c.JSON(200, gin.H{"object": "list", "data": data})
}
