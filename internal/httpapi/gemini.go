package httpapi

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/llmgateway/proxycore/internal/sse"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/translate"
)

var geminiModeledFields = []string{"contents", "generationConfig", "tools", "session_id"}

// HandleModelAction serves both POST /v1beta/models/{model}:generateContent
// and :streamGenerateContent. Gin routes a path param alone per segment, so
// both actions share one route registered on ":modelAction" and split the
// literal ":" gemini puts inside that segment here.
func (d *Dependencies) HandleModelAction(c *gin.Context) {
	model, action, ok := strings.Cut(c.Param("modelAction"), ":")
	if !ok {
		writeError(c, &domain.InvalidRequestError{Param: "model", Code: "missing_action", Message: "expected model:action"})
		return
	}
	switch action {
	case "generateContent":
		d.handleGemini(c, model, false)
	case "streamGenerateContent":
		d.handleGemini(c, model, true)
	default:
		writeError(c, &domain.InvalidRequestError{Param: "action", Code: "unknown_action", Message: "unsupported action " + action})
	}
}

func (d *Dependencies) handleGemini(c *gin.Context, model string, stream bool) {
	var wire translate.GeminiRequest
	body, err := decodeBody(c, &wire)
	if err != nil {
		writeError(c, &domain.InvalidRequestError{Code: "invalid_json", Message: err.Error()})
		return
	}

	req := geminiWireToDomain(wire)
	req.Model = "gemini:" + model
	req.Stream = stream
	req.ExtraBody = mergeExtra(req.ExtraBody, extraBody(body, geminiModeledFields...))
	sessionID := resolveSessionID(c, body)

	outcome, err := d.Execute(c.Request.Context(), req, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	if outcome.CommandReply != "" {
		writeGeminiCommandReply(c, outcome)
		return
	}
	if outcome.Stream != nil {
		streamGemini(c, outcome)
		return
	}
	writeGeminiResponse(c, outcome)
}

// geminiWireToDomain adapts translate's request-only DomainToGemini
// direction in reverse — the generateContent wire shape carries no
// system/assistant role distinction pkg/translate's request converters
// don't already handle in the inbound direction, so this proxy builds the
// canonical request directly from GeminiContent parts.
func geminiWireToDomain(wire translate.GeminiRequest) *domain.ChatRequest {
	out := &domain.ChatRequest{}
	for _, content := range wire.Contents {
		role := domain.RoleUser
		if content.Role == "model" {
			role = domain.RoleAssistant
		}
		msg := domain.ChatMessage{Role: role}
		var text string
		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
					ID:   "call_" + part.FunctionCall.Name,
					Type: "function",
					Function: domain.ToolCallFunc{
						Name:      part.FunctionCall.Name,
						Arguments: string(part.FunctionCall.Args),
					},
				})
			case part.FunctionResponse != nil:
				msg.Role = domain.RoleTool
				msg.Name = part.FunctionResponse.Name
				text += string(part.FunctionResponse.Response)
			default:
				text += part.Text
			}
		}
		msg.Text = text
		out.Messages = append(out.Messages, msg)
	}
	if gc := wire.GenerationConfig; gc != nil {
		if v, ok := gc["temperature"].(float64); ok {
			out.Temperature = &v
		}
		if v, ok := gc["topP"].(float64); ok {
			out.TopP = &v
		}
		if v, ok := gc["maxOutputTokens"].(float64); ok {
			n := int(v)
			out.MaxTokens = &n
		}
	}
	for _, tool := range wire.Tools {
		for _, decl := range tool.FunctionDeclarations {
			out.Tools = append(out.Tools, domain.ToolDefinition{
				Type: "function",
				Function: domain.ToolFunction{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  decl.Parameters,
				},
			})
		}
	}
	return out
}

func writeGeminiCommandReply(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.JSON(200, gin.H{
		"candidates": []gin.H{{
			"content":      gin.H{"role": "model", "parts": []gin.H{{"text": outcome.CommandReply}}},
			"finishReason": "STOP",
		}},
	})
}

func writeGeminiResponse(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	resp := outcome.Response
	parts := []gin.H{}
	if text := resp.Message.ContentText(); text != "" {
		parts = append(parts, gin.H{"text": text})
	}
	for _, tc := range resp.Message.ToolCalls {
		parts = append(parts, gin.H{"functionCall": gin.H{"name": tc.Function.Name, "args": json.RawMessage(tc.Function.Arguments)}})
	}
	c.JSON(200, gin.H{
		"candidates": []gin.H{{
			"content":      gin.H{"role": "model", "parts": parts},
			"finishReason": geminiWireFinish(resp.FinishReason),
		}},
		"usageMetadata": gin.H{
			"promptTokenCount":     resp.Usage.PromptTokens,
			"candidatesTokenCount": resp.Usage.CompletionTokens,
			"totalTokenCount":      resp.Usage.TotalTokens,
		},
	})
}

func geminiWireFinish(fr domain.FinishReason) string {
	switch fr {
	case domain.FinishLength:
		return "MAX_TOKENS"
	case domain.FinishContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}

func streamGemini(c *gin.Context, outcome *Outcome) {
	c.Header("X-Session-Id", outcome.SessionID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := sse.NewWriter(c.Writer)

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-outcome.Stream
		if !ok {
			return false
		}
		wire := translate.DomainStreamChunkToGemini(chunk)
		data, err := json.Marshal(wire)
		if err != nil {
			return true
		}
		_ = writer.WriteData(string(data))
		c.Writer.Flush()
		return true
	})
}
