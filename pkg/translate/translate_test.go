package translate

import (
	"encoding/json"
	"testing"

	"github.com/llmgateway/proxycore/pkg/domain"
)

func TestOpenAIToDomain_SimpleText(t *testing.T) {
	t.Parallel()

	req := OpenAIRequest{
		Model:    "gpt-4",
		Messages: []OpenAIMessage{{Role: "user", Content: mustJSON(t, "hi there")}},
	}
	out := OpenAIToDomain(req, nil)
	if len(out.Messages) != 1 || out.Messages[0].Text != "hi there" {
		t.Fatalf("unexpected messages: %+v", out.Messages)
	}
}

func TestDomainToOpenAI_RoundTripsToolCalls(t *testing.T) {
	t.Parallel()

	req := &domain.ChatRequest{
		Model: "gpt-4",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
				{ID: "call_1", Type: "function", Function: domain.ToolCallFunc{Name: "lookup", Arguments: `{"q":"x"}`}},
			}},
		},
	}
	wire := DomainToOpenAI(req)
	if len(wire.Messages) != 1 || len(wire.Messages[0].ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %+v", wire.Messages)
	}
	if wire.Messages[0].ToolCalls[0].Function.Name != "lookup" {
		t.Fatal("tool call name did not round-trip")
	}
}

func TestDomainToAnthropic_SplitsSystemMessage(t *testing.T) {
	t.Parallel()

	req := &domain.ChatRequest{
		Model: "claude-3",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Text: "be terse"},
			{Role: domain.RoleUser, Text: "hi"},
		},
	}
	out := DomainToAnthropic(req, 1024)
	if out.System != "be terse" {
		t.Fatalf("expected system pulled out, got %q", out.System)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != "user" {
		t.Fatalf("expected only the user message remaining, got %+v", out.Messages)
	}
}

func TestAnthropicResponseToDomain_CollapsesTextAndToolUse(t *testing.T) {
	t.Parallel()

	resp := AnthropicResponse{
		ID: "msg_1",
		Content: []AnthropicContent{
			{Type: "text", Text: "part one "},
			{Type: "text", Text: "part two"},
			{Type: "tool_use", ID: "call_1", Name: "lookup", Input: json.RawMessage(`{"q":"x"}`)},
		},
		StopReason: "tool_use",
		Usage:      AnthropicUsage{InputTokens: 10, OutputTokens: 5},
	}
	out := AnthropicResponseToDomain(resp)
	if out.Message.Text != "part one part two" {
		t.Fatalf("expected concatenated text, got %q", out.Message.Text)
	}
	if len(out.Message.ToolCalls) != 1 || out.Message.ToolCalls[0].Function.Name != "lookup" {
		t.Fatalf("expected tool_use mapped to tool_calls, got %+v", out.Message.ToolCalls)
	}
	if out.FinishReason != domain.FinishToolCalls {
		t.Fatalf("expected finish reason tool_calls, got %s", out.FinishReason)
	}
	if out.Usage.TotalTokens != 15 {
		t.Fatalf("expected total tokens 15, got %d", out.Usage.TotalTokens)
	}
}

func TestDomainToGemini_DropsSystemAndClampsTemperature(t *testing.T) {
	t.Parallel()

	temp := 1.8
	req := &domain.ChatRequest{
		Model:       "gemini:gemini-1.5-pro",
		Temperature: &temp,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Text: "ignored"},
			{Role: domain.RoleUser, Text: "hello"},
		},
	}
	out, warnings := DomainToGemini(req, nil)
	if len(out.Contents) != 1 {
		t.Fatalf("expected system message dropped, got %d contents", len(out.Contents))
	}
	if out.GenerationConfig["temperature"] != 1.0 {
		t.Fatalf("expected temperature clamped to 1.0, got %v", out.GenerationConfig["temperature"])
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one clamp warning, got %d", len(warnings))
	}
}

func TestDomainToGemini_ExtraGenerationConfigOverrides(t *testing.T) {
	t.Parallel()

	req := &domain.ChatRequest{Model: "gemini-1.5-flash", Messages: []domain.ChatMessage{{Role: domain.RoleUser, Text: "hi"}}}
	out, _ := DomainToGemini(req, map[string]interface{}{"candidateCount": 2})
	if out.GenerationConfig["candidateCount"] != 2 {
		t.Fatalf("expected extra generationConfig to be merged, got %+v", out.GenerationConfig)
	}
}

func TestNormalizeGeminiModel_StripsPrefixes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"gemini:gemini-1.5-pro": "gemini-1.5-pro",
		"models/gemini-1.5-pro": "gemini-1.5-pro",
		"gemini/gemini-1.5-pro": "gemini-1.5-pro",
		"foo/bar/gemini-1.5-pro": "gemini-1.5-pro",
	}
	for in, want := range cases {
		if got := normalizeGeminiModel(in); got != want {
			t.Errorf("normalizeGeminiModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeminiChunkToOpenAIDelta_FunctionCallSetsFinishReason(t *testing.T) {
	t.Parallel()

	chunk := GeminiResponse{
		Candidates: []GeminiCandidate{{
			Content: GeminiContent{Parts: []GeminiPart{{
				FunctionCall: &GeminiFunctionCall{Name: "lookup", Args: json.RawMessage(`{}`)},
			}}},
		}},
	}
	out := GeminiChunkToOpenAIDelta(chunk)
	choices := out["choices"].([]map[string]interface{})
	if choices[0]["finish_reason"] != "tool_calls" {
		t.Fatalf("expected finish_reason tool_calls, got %v", choices[0]["finish_reason"])
	}
	delta := choices[0]["delta"].(map[string]interface{})
	toolCalls := delta["tool_calls"].([]map[string]interface{})
	if toolCalls[0]["id"] != "call_0" {
		t.Fatalf("expected synthetic id call_0, got %v", toolCalls[0]["id"])
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
