package httpapi

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// responsesWire is the subset of the OpenAI Responses API request shape
// this proxy accepts: "input" is either a bare string (one user turn) or
// an array of {role, content} items, mirroring /v1/chat/completions'
// message list but under a different field name (spec §6).
type responsesWire struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

var responsesModeledFields = []string{"model", "input", "session_id"}

// HandleResponses serves POST /v1/responses.
func (d *Dependencies) HandleResponses(c *gin.Context) {
	var wire responsesWire
	body, err := decodeBody(c, &wire)
	if err != nil {
		writeError(c, &domain.InvalidRequestError{Code: "invalid_json", Message: err.Error()})
		return
	}

	messages, err := responsesInputToMessages(wire.Input)
	if err != nil {
		writeError(c, &domain.InvalidRequestError{Param: "input", Code: "invalid_input", Message: err.Error()})
		return
	}

	req := &domain.ChatRequest{
		Model:     wire.Model,
		Messages:  messages,
		ExtraBody: extraBody(body, responsesModeledFields...),
	}
	sessionID := resolveSessionID(c, body)

	outcome, err := d.Execute(c.Request.Context(), req, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("X-Session-Id", outcome.SessionID)
	text := outcome.CommandReply
	if outcome.Response != nil {
		text = outcome.Response.Message.ContentText()
	}
	c.JSON(200, gin.H{
		"id":     "resp_" + uuid.NewString(),
		"object": "response",
		"model":  wire.Model,
		"output": []gin.H{{
			"type": "message",
			"role": "assistant",
			"content": []gin.H{
				{"type": "output_text", "text": text},
			},
		}},
	})
}

// responsesInputToMessages normalizes the Responses API's "input" field,
// which is either a bare string or an array of {role, content} objects,
// into the canonical message list.
func responsesInputToMessages(raw json.RawMessage) ([]domain.ChatMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []domain.ChatMessage{{Role: domain.RoleUser, Text: asString}}, nil
	}

	var asItems []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &asItems); err != nil {
		return nil, err
	}
	messages := make([]domain.ChatMessage, 0, len(asItems))
	for _, item := range asItems {
		role := domain.Role(item.Role)
		if role == "" {
			role = domain.RoleUser
		}
		messages = append(messages, domain.ChatMessage{Role: role, Text: item.Content})
	}
	return messages, nil
}
