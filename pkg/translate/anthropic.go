package translate

import (
	"encoding/json"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// AnthropicRequest is the wire shape POSTed to /v1/messages.
type AnthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []AnthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature *float64            `json:"temperature,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
	Stop        []string            `json:"stop_sequences,omitempty"`
	Tools       []AnthropicToolDef  `json:"tools,omitempty"`
}

type AnthropicMessage struct {
	Role    string            `json:"role"`
	Content []AnthropicContent `json:"content"`
}

// AnthropicContent is a tagged union over text / tool_use / tool_result
// blocks. Only the fields relevant to Type are populated.
type AnthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type AnthropicToolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"input_schema,omitempty"`
}

// AnthropicResponse is the wire shape of a non-streaming /v1/messages reply.
type AnthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []AnthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      AnthropicUsage     `json:"usage"`
}

type AnthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

var anthropicStopReasons = map[string]domain.FinishReason{
	"end_turn":      domain.FinishStop,
	"stop_sequence": domain.FinishStop,
	"max_tokens":    domain.FinishLength,
	"tool_use":      domain.FinishToolCalls,
}

// DomainToAnthropic converts a canonical request into Anthropic's messages
// shape: the system message is pulled out of Messages into the top-level
// System field (spec §4.3), TopK/TopP are left for the caller to merge into
// extra_body since Anthropic has no first-class field for them here.
func DomainToAnthropic(req *domain.ChatRequest, maxTokens int) AnthropicRequest {
	out := AnthropicRequest{
		Model:       stripModelPrefix(req.Model, "anthropic:", "anthropic/"),
		Temperature: req.Temperature,
		Stream:      req.Stream,
		Stop:        req.Stop,
		MaxTokens:   maxTokens,
	}
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.ContentText()
			continue
		}
		out.Messages = append(out.Messages, domainMessageToAnthropic(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, AnthropicToolDef{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return out
}

func domainMessageToAnthropic(m domain.ChatMessage) AnthropicMessage {
	if m.Role == domain.RoleTool {
		return AnthropicMessage{
			Role: "user",
			Content: []AnthropicContent{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.ContentText(),
			}},
		}
	}

	out := AnthropicMessage{Role: string(m.Role)}
	if text := m.ContentText(); text != "" {
		out.Content = append(out.Content, AnthropicContent{Type: "text", Text: text})
	}
	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		out.Content = append(out.Content, AnthropicContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return out
}

// AnthropicToDomain converts an inbound Anthropic request into canonical
// form, pushing System back in as a leading system message.
func AnthropicToDomain(req AnthropicRequest) *domain.ChatRequest {
	out := &domain.ChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Stream:      req.Stream,
		Stop:        req.Stop,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, domain.ChatMessage{Role: domain.RoleSystem, Text: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, anthropicMessageToDomain(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, domain.ToolDefinition{
			Type: "function",
			Function: domain.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

func anthropicMessageToDomain(m AnthropicMessage) domain.ChatMessage {
	out := domain.ChatMessage{Role: domain.Role(m.Role)}
	var text string
	for _, block := range m.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: domain.ToolCallFunc{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		case "tool_result":
			out.Role = domain.RoleTool
			out.ToolCallID = block.ToolUseID
			text += block.Content
		}
	}
	out.Text = text
	return out
}

// AnthropicResponseToDomain collapses assistant content blocks into the
// canonical response: text blocks concatenate, tool_use blocks become
// tool_calls (spec §4.3).
func AnthropicResponseToDomain(resp AnthropicResponse) *domain.ChatResponse {
	msg := domain.ChatMessage{Role: domain.RoleAssistant}
	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: domain.ToolCallFunc{
					Name:      block.Name,
					Arguments: string(input),
				},
			})
		}
	}
	msg.Text = text

	finish := anthropicStopReasons[resp.StopReason]
	if finish == "" {
		finish = domain.FinishStop
	}

	return &domain.ChatResponse{
		ID:           resp.ID,
		Message:      msg,
		FinishReason: finish,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}
