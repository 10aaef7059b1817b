package httpapi

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/llmgateway/proxycore/internal/sse"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/translate"
)

var anthropicModeledFields = []string{
	"model", "system", "messages", "max_tokens", "temperature",
	"stream", "stop_sequences", "tools", "session_id",
}

// HandleMessages serves POST /v1/messages (Anthropic schema).
func (d *Dependencies) HandleMessages(c *gin.Context) {
	var wire translate.AnthropicRequest
	body, err := decodeBody(c, &wire)
	if err != nil {
		writeError(c, &domain.InvalidRequestError{Code: "invalid_json", Message: err.Error()})
		return
	}

	req := translate.AnthropicToDomain(wire)
	req.ExtraBody = mergeExtra(req.ExtraBody, extraBody(body, anthropicModeledFields...))
	sessionID := resolveSessionID(c, body)

	outcome, err := d.Execute(c.Request.Context(), req, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if outcome.CommandReply != "" {
		writeAnthropicCommandReply(c, outcome)
		return
	}
	if outcome.Stream != nil {
		streamAnthropic(c, outcome)
		return
	}
	writeAnthropicResponse(c, outcome)
}

func mergeExtra(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	if base == nil {
		base = map[string]interface{}{}
	}
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func writeAnthropicCommandReply(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.JSON(200, gin.H{
		"id":          "msg_" + uuid.NewString(),
		"type":        "message",
		"role":        "assistant",
		"content":     []gin.H{{"type": "text", "text": outcome.CommandReply}},
		"stop_reason": "end_turn",
	})
}

func writeAnthropicResponse(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	resp := outcome.Response
	content := []gin.H{}
	if text := resp.Message.ContentText(); text != "" {
		content = append(content, gin.H{"type": "text", "text": text})
	}
	for _, tc := range resp.Message.ToolCalls {
		content = append(content, gin.H{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Function.Name,
			"input": json.RawMessage(tc.Function.Arguments),
		})
	}
	c.JSON(200, gin.H{
		"id":          responseID(resp.ID),
		"type":        "message",
		"role":        "assistant",
		"content":     content,
		"stop_reason": anthropicStopReasonWire(resp.FinishReason),
		"usage": gin.H{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
		},
	})
}

func anthropicStopReasonWire(fr domain.FinishReason) string {
	switch fr {
	case domain.FinishLength:
		return "max_tokens"
	case domain.FinishToolCalls:
		return "tool_use"
	default:
		return "end_turn"
	}
}

func streamAnthropic(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := sse.NewWriter(c.Writer)
	_ = writer.WriteEvent(sse.Event{Event: "message_start", Data: `{"type":"message_start"}`})
	_ = writer.WriteEvent(sse.Event{Event: "content_block_start", Data: `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`})

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-outcome.Stream
		if !ok {
			_ = writer.WriteEvent(sse.Event{Event: "content_block_stop", Data: `{"type":"content_block_stop","index":0}`})
			_ = writer.WriteEvent(sse.Event{Event: "message_stop", Data: `{"type":"message_stop"}`})
			return false
		}
		for _, evt := range translate.DomainStreamChunkToAnthropicEvents(chunk) {
			data, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			_ = writer.WriteEvent(sse.Event{Event: evt.Event, Data: string(data)})
		}
		c.Writer.Flush()
		return true
	})
}
