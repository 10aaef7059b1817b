package translate

import (
	"encoding/json"
	"strconv"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// openAIStreamWire is the subset of an OpenAI chat-completion-chunk this
// proxy reads from or writes to the wire.
type openAIStreamWire struct {
	ID      string `json:"id,omitempty"`
	Object  string `json:"object,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Delta struct {
			Content   string           `json:"content,omitempty"`
			ToolCalls []OpenAIToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *OpenAIUsage `json:"usage,omitempty"`
}

// OpenAIStreamChunkToDomain parses one OpenAI chat-completion-chunk's JSON
// payload (the "data: " line content, already stripped of the prefix) into
// the canonical StreamChunk shape.
func OpenAIStreamChunkToDomain(raw []byte) (domain.StreamChunk, error) {
	var wire openAIStreamWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.StreamChunk{}, err
	}
	out := domain.StreamChunk{}
	if wire.Usage != nil {
		out.Usage = &domain.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}
	if len(wire.Choices) == 0 {
		return out, nil
	}
	choice := wire.Choices[0]
	out.DeltaText = choice.Delta.Content
	for _, tc := range choice.Delta.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: domain.ToolCallFunc{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		out.FinishReason = domain.FinishReason(*choice.FinishReason)
		out.Done = true
	}
	return out, nil
}

// DomainStreamChunkToOpenAI renders chunk as an outbound OpenAI
// chat-completion-chunk object, ready to json.Marshal into an SSE "data:"
// line.
func DomainStreamChunkToOpenAI(chunk domain.StreamChunk, id, model string) map[string]interface{} {
	delta := map[string]interface{}{}
	if chunk.DeltaText != "" {
		delta["content"] = chunk.DeltaText
	}
	if len(chunk.ToolCalls) > 0 {
		calls := make([]map[string]interface{}, 0, len(chunk.ToolCalls))
		for _, tc := range chunk.ToolCalls {
			calls = append(calls, map[string]interface{}{
				"id":   tc.ID,
				"type": tc.Type,
				"function": map[string]interface{}{
					"name":      tc.Function.Name,
					"arguments": tc.Function.Arguments,
				},
			})
		}
		delta["tool_calls"] = calls
	}
	var finishReason interface{}
	if chunk.FinishReason != "" {
		finishReason = string(chunk.FinishReason)
	}
	out := map[string]interface{}{
		"id":      id,
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []map[string]interface{}{{"index": 0, "delta": delta, "finish_reason": finishReason}},
	}
	if chunk.Usage != nil {
		out["usage"] = map[string]interface{}{
			"prompt_tokens":     chunk.Usage.PromptTokens,
			"completion_tokens": chunk.Usage.CompletionTokens,
			"total_tokens":      chunk.Usage.TotalTokens,
		}
	}
	return out
}

// GeminiStreamChunkToDomain converts one already-decoded Gemini streaming
// chunk (a full GeminiResponse per spec §4.3 — Gemini repeats the whole
// candidate shape every chunk rather than sending a delta) into the
// canonical StreamChunk.
func GeminiStreamChunkToDomain(chunk GeminiResponse) domain.StreamChunk {
	out := domain.StreamChunk{}
	if chunk.UsageMetadata.TotalTokenCount > 0 {
		out.Usage = &domain.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
		}
	}
	if len(chunk.Candidates) == 0 {
		return out
	}
	candidate := chunk.Candidates[0]
	var text string
	for _, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:   "call_" + strconv.Itoa(len(out.ToolCalls)),
				Type: "function",
				Function: domain.ToolCallFunc{
					Name:      part.FunctionCall.Name,
					Arguments: string(part.FunctionCall.Args),
				},
			})
			continue
		}
		text += part.Text
	}
	out.DeltaText = text
	if len(out.ToolCalls) > 0 {
		out.FinishReason = domain.FinishToolCalls
		out.Done = true
	} else if candidate.FinishReason != "" {
		out.FinishReason = geminiFinishReason(candidate.FinishReason)
		out.Done = true
	}
	return out
}

// DomainStreamChunkToGemini renders chunk as an outbound Gemini
// streamGenerateContent chunk.
func DomainStreamChunkToGemini(chunk domain.StreamChunk) GeminiResponse {
	var parts []GeminiPart
	if chunk.DeltaText != "" {
		parts = append(parts, GeminiPart{Text: chunk.DeltaText})
	}
	for _, tc := range chunk.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{Name: tc.Function.Name, Args: args}})
	}
	candidate := GeminiCandidate{Content: GeminiContent{Role: "model", Parts: parts}}
	if chunk.FinishReason != "" {
		candidate.FinishReason = geminiWireFinishReason(chunk.FinishReason)
	}
	out := GeminiResponse{Candidates: []GeminiCandidate{candidate}}
	if chunk.Usage != nil {
		out.UsageMetadata = GeminiUsageMeta{
			PromptTokenCount:     chunk.Usage.PromptTokens,
			CandidatesTokenCount: chunk.Usage.CompletionTokens,
			TotalTokenCount:      chunk.Usage.TotalTokens,
		}
	}
	return out
}

func geminiWireFinishReason(fr domain.FinishReason) string {
	for wire, mapped := range geminiFinishReasons {
		if mapped == fr {
			return wire
		}
	}
	return "STOP"
}

// anthropicStreamEvent is the subset of Anthropic's messages-stream event
// payloads this proxy interprets.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
		InputTokens  int64 `json:"input_tokens"`
	} `json:"usage"`
}

// anthropicStreamState tracks the in-progress tool_use block across the
// content_block_start/content_block_delta/content_block_stop triple, since
// Anthropic streams a tool call's name up front and its arguments as
// incremental JSON fragments.
type anthropicStreamState struct {
	activeToolID   string
	activeToolName string
}

// NewAnthropicStreamState returns a fresh per-stream decoder state.
func NewAnthropicStreamState() *anthropicStreamState { return &anthropicStreamState{} }

// AnthropicStreamEventToDomain decodes one Anthropic SSE event (its
// "event:" name and "data:" JSON payload) into a StreamChunk. ok is false
// for event types that carry no chunk-worthy delta (message_start,
// content_block_stop, ping).
func (s *anthropicStreamState) AnthropicStreamEventToDomain(eventType string, data []byte) (domain.StreamChunk, bool, error) {
	var evt anthropicStreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return domain.StreamChunk{}, false, err
	}
	if eventType == "" {
		eventType = evt.Type
	}

	switch eventType {
	case "content_block_start":
		if evt.ContentBlock.Type == "tool_use" {
			s.activeToolID = evt.ContentBlock.ID
			s.activeToolName = evt.ContentBlock.Name
		}
		return domain.StreamChunk{}, false, nil

	case "content_block_delta":
		switch evt.Delta.Type {
		case "text_delta":
			return domain.StreamChunk{DeltaText: evt.Delta.Text}, true, nil
		case "input_json_delta":
			return domain.StreamChunk{ToolCalls: []domain.ToolCall{{
				ID:   s.activeToolID,
				Type: "function",
				Function: domain.ToolCallFunc{
					Name:      s.activeToolName,
					Arguments: evt.Delta.PartialJSON,
				},
			}}}, true, nil
		}
		return domain.StreamChunk{}, false, nil

	case "message_delta":
		out := domain.StreamChunk{}
		if evt.Delta.StopReason != "" {
			out.FinishReason = anthropicStopReasons[evt.Delta.StopReason]
			if out.FinishReason == "" {
				out.FinishReason = domain.FinishStop
			}
			out.Done = true
		}
		if evt.Usage.OutputTokens > 0 || evt.Usage.InputTokens > 0 {
			out.Usage = &domain.Usage{
				PromptTokens:     evt.Usage.InputTokens,
				CompletionTokens: evt.Usage.OutputTokens,
				TotalTokens:      evt.Usage.InputTokens + evt.Usage.OutputTokens,
			}
		}
		return out, out.FinishReason != "" || out.Usage != nil, nil

	default:
		return domain.StreamChunk{}, false, nil
	}
}

// DomainStreamChunkToAnthropicEvents renders chunk as zero or more outbound
// Anthropic SSE events (event name, JSON data), continuing the single text
// content block index 0 this proxy always emits as block 0 for simplicity
// (spec §4.3 notes multi-block tool-call interleaving is a backend-side
// concern; re-emission always uses one text block followed by one tool_use
// block per call, which matches every client this proxy has been asked to
// speak to).
func DomainStreamChunkToAnthropicEvents(chunk domain.StreamChunk) []struct {
	Event string
	Data  map[string]interface{}
} {
	type evt = struct {
		Event string
		Data  map[string]interface{}
	}
	var events []evt

	if chunk.DeltaText != "" {
		events = append(events, evt{
			Event: "content_block_delta",
			Data: map[string]interface{}{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]interface{}{"type": "text_delta", "text": chunk.DeltaText},
			},
		})
	}
	for _, tc := range chunk.ToolCalls {
		events = append(events, evt{
			Event: "content_block_delta",
			Data: map[string]interface{}{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]interface{}{
					"type":         "input_json_delta",
					"partial_json": tc.Function.Arguments,
				},
			},
		})
	}
	if chunk.FinishReason != "" {
		events = append(events, evt{
			Event: "message_delta",
			Data: map[string]interface{}{
				"type":  "message_delta",
				"delta": map[string]interface{}{"stop_reason": anthropicWireStopReason(chunk.FinishReason)},
			},
		})
	}
	return events
}

func anthropicWireStopReason(fr domain.FinishReason) string {
	for wire, mapped := range anthropicStopReasons {
		if mapped == fr {
			return wire
		}
	}
	return "end_turn"
}
