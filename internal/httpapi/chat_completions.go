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

var openAIModeledFields = []string{
	"model", "messages", "temperature", "top_p", "max_tokens", "seed",
	"stream", "stop", "reasoning_effort", "tools", "tool_choice", "session_id",
}

// HandleChatCompletions serves POST /v1/chat/completions.
func (d *Dependencies) HandleChatCompletions(c *gin.Context) {
	var wire translate.OpenAIRequest
	body, err := decodeBody(c, &wire)
	if err != nil {
		writeError(c, &domain.InvalidRequestError{Code: "invalid_json", Message: err.Error()})
		return
	}

	req := translate.OpenAIToDomain(wire, extraBody(body, openAIModeledFields...))
	sessionID := resolveSessionID(c, body)

	outcome, err := d.Execute(c.Request.Context(), req, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if outcome.CommandReply != "" {
		writeOpenAICommandReply(c, outcome)
		return
	}
	if outcome.Stream != nil {
		streamOpenAI(c, outcome, wire.Model)
		return
	}
	writeOpenAIResponse(c, outcome, wire.Model)
}

func writeOpenAICommandReply(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.JSON(200, gin.H{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"model":   "proxycore",
		"choices": []gin.H{{"index": 0, "message": gin.H{"role": "assistant", "content": outcome.CommandReply}, "finish_reason": "stop"}},
	})
}

func writeOpenAIResponse(c *gin.Context, outcome *Outcome, requestedModel string) {
	c.Header("X-Session-Id", outcome.SessionID)
	resp := outcome.Response
	c.JSON(200, gin.H{
		"id":      responseID(resp.ID),
		"object":  "chat.completion",
		"model":   requestedModel,
		"choices": []gin.H{{"index": 0, "message": domainMessageToOpenAIWire(resp.Message), "finish_reason": string(resp.FinishReason)}},
		"usage": gin.H{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	})
}

func domainMessageToOpenAIWire(m domain.ChatMessage) gin.H {
	out := gin.H{"role": string(m.Role), "content": m.ContentText()}
	if len(m.ToolCalls) > 0 {
		calls := make([]gin.H, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, gin.H{
				"id":   tc.ID,
				"type": tc.Type,
				"function": gin.H{
					"name":      tc.Function.Name,
					"arguments": tc.Function.Arguments,
				},
			})
		}
		out["tool_calls"] = calls
	}
	return out
}

func streamOpenAI(c *gin.Context, outcome *Outcome, requestedModel string) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	id := "chatcmpl-" + uuid.NewString()
	writer := sse.NewWriter(c.Writer)

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-outcome.Stream
		if !ok {
			_ = writer.WriteDone()
			return false
		}
		wire := translate.DomainStreamChunkToOpenAI(chunk, id, requestedModel)
		data, err := json.Marshal(wire)
		if err != nil {
			return true
		}
		_ = writer.WriteData(string(data))
		c.Writer.Flush()
		return true
	})
}

func responseID(id string) string {
	if id == "" {
		return "chatcmpl-" + uuid.NewString()
	}
	return id
}
