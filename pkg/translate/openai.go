// Package translate converts between the canonical domain.ChatRequest /
// domain.ChatResponse model and the wire formats of each supported ingress
// and backend: OpenAI chat completions, Anthropic messages, and Google
// Gemini generateContent. Grounded on the request/response shaping the
// teacher's OpenAI language model builds by hand (buildRequestBody,
// convertResponse), generalized into pure functions operating on the
// canonical types instead of provider-specific options.
package translate

import (
	"encoding/json"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// OpenAIMessage is the wire shape of one chat completions message.
type OpenAIMessage struct {
	Role       string             `json:"role"`
	Content    json.RawMessage    `json:"content,omitempty"`
	Name       string             `json:"name,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	ToolCalls  []OpenAIToolCall   `json:"tool_calls,omitempty"`
}

// OpenAIToolCall mirrors domain.ToolCall on the wire.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIToolCallFunc `json:"function"`
}

type OpenAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIRequest is the wire shape POSTed to /v1/chat/completions.
type OpenAIRequest struct {
	Model           string                 `json:"model"`
	Messages        []OpenAIMessage        `json:"messages"`
	Temperature     *float64               `json:"temperature,omitempty"`
	TopP            *float64               `json:"top_p,omitempty"`
	MaxTokens       *int                   `json:"max_tokens,omitempty"`
	Seed            *int                   `json:"seed,omitempty"`
	Stream          bool                   `json:"stream,omitempty"`
	Stop            []string               `json:"stop,omitempty"`
	ReasoningEffort string                 `json:"reasoning_effort,omitempty"`
	Tools           []OpenAIToolDefinition `json:"tools,omitempty"`
	ToolChoice      interface{}            `json:"tool_choice,omitempty"`
}

type OpenAIToolDefinition struct {
	Type     string              `json:"type"`
	Function OpenAIToolFunctionD `json:"function"`
}

type OpenAIToolFunctionD struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// OpenAIResponse is the wire shape of a non-streaming chat completion.
type OpenAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// OpenAIToDomain converts an inbound OpenAI chat-completions request into
// the canonical request. extra carries any JSON fields the wire struct
// doesn't model (extra_body passthrough) keyed by name; internal "_"
// bookkeeping keys are the middleware chain's concern, not translation's.
func OpenAIToDomain(req OpenAIRequest, extra map[string]interface{}) *domain.ChatRequest {
	out := &domain.ChatRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxTokens:       req.MaxTokens,
		Seed:            req.Seed,
		Stream:          req.Stream,
		Stop:            req.Stop,
		ReasoningEffort: req.ReasoningEffort,
		ExtraBody:       extra,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, openAIMessageToDomain(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, domain.ToolDefinition{
			Type: t.Type,
			Function: domain.ToolFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	return out
}

func openAIMessageToDomain(m OpenAIMessage) domain.ChatMessage {
	out := domain.ChatMessage{
		Role:       domain.Role(m.Role),
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: domain.ToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	if len(m.Content) == 0 {
		return out
	}
	var asString string
	if err := json.Unmarshal(m.Content, &asString); err == nil {
		out.Text = asString
		return out
	}
	var asParts []openAIContentPart
	if err := json.Unmarshal(m.Content, &asParts); err == nil {
		out.Parts = make([]domain.ContentPart, 0, len(asParts))
		for _, p := range asParts {
			out.Parts = append(out.Parts, p.toDomain())
		}
	}
	return out
}

type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

func (p openAIContentPart) toDomain() domain.ContentPart {
	switch p.Type {
	case "image_url":
		url := ""
		if p.ImageURL != nil {
			url = p.ImageURL.URL
		}
		return domain.NormalizeImagePart(domain.ImagePart{URL: url})
	default:
		return domain.TextPart{Text: p.Text}
	}
}

// DomainToOpenAI converts the canonical request back into OpenAI wire form.
// It does not merge PublicExtraBody fields the struct doesn't model: the
// caller json.Marshals the struct and then shallow-merges extra into the
// resulting map, so translation itself stays pure/struct-based.
func DomainToOpenAI(req *domain.ChatRequest) OpenAIRequest {
	out := OpenAIRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxTokens:       req.MaxTokens,
		Seed:            req.Seed,
		Stream:          req.Stream,
		Stop:            req.Stop,
		ReasoningEffort: req.ReasoningEffort,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, domainMessageToOpenAI(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, OpenAIToolDefinition{
			Type: t.Type,
			Function: OpenAIToolFunctionD{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	if req.ToolChoice.Mode != "" {
		out.ToolChoice = openAIToolChoice(req.ToolChoice)
	}
	return out
}

func openAIToolChoice(tc domain.ToolChoice) interface{} {
	switch tc.Mode {
	case "function":
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": tc.FunctionName},
		}
	default:
		return tc.Mode
	}
}

func domainMessageToOpenAI(m domain.ChatMessage) OpenAIMessage {
	out := OpenAIMessage{Role: string(m.Role), Name: m.Name, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, OpenAIToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: OpenAIToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	if m.HasParts() {
		parts := make([]map[string]interface{}, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, openAIWirePart(p))
		}
		raw, _ := json.Marshal(parts)
		out.Content = raw
		return out
	}
	raw, _ := json.Marshal(m.Text)
	out.Content = raw
	return out
}

func openAIWirePart(p domain.ContentPart) map[string]interface{} {
	switch v := p.(type) {
	case domain.TextPart:
		return map[string]interface{}{"type": "text", "text": v.Text}
	case domain.ImagePart:
		url := v.URL
		if url == "" && v.Base64 != "" {
			url = "data:" + v.MIME + ";base64," + v.Base64
		}
		return map[string]interface{}{"type": "image_url", "image_url": map[string]string{"url": url}}
	default:
		return map[string]interface{}{"type": p.PartType()}
	}
}

// OpenAIResponseToDomain converts a non-streaming OpenAI response into the
// canonical response shape.
func OpenAIResponseToDomain(resp OpenAIResponse) *domain.ChatResponse {
	out := &domain.ChatResponse{ID: resp.ID, Model: resp.Model}
	out.Usage = domain.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Message = openAIMessageToDomain(choice.Message)
	out.FinishReason = domain.FinishReason(choice.FinishReason)
	return out
}
