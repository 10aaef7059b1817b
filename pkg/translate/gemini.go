package translate

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// GeminiRequest is the wire shape POSTed to :generateContent /
// :streamGenerateContent.
type GeminiRequest struct {
	Contents         []GeminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
	Tools            []GeminiTool           `json:"tools,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a tagged union: exactly one of Text, InlineData, FileData,
// FunctionCall, FunctionResponse is populated.
type GeminiPart struct {
	Text             string                `json:"text,omitempty"`
	InlineData       *GeminiBlob           `json:"inlineData,omitempty"`
	FileData         *GeminiFileData       `json:"fileData,omitempty"`
	FunctionCall     *GeminiFunctionCall   `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResult `json:"functionResponse,omitempty"`
}

type GeminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiFileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type GeminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type GeminiFunctionResult struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDecl `json:"functionDeclarations"`
}

type GeminiFunctionDecl struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// GeminiResponse is the wire shape of a non-streaming generateContent reply.
type GeminiResponse struct {
	Candidates    []GeminiCandidate  `json:"candidates"`
	UsageMetadata GeminiUsageMeta    `json:"usageMetadata"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type GeminiUsageMeta struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// GeminiWarning records a lossy conversion the caller may want to surface
// (spec §4.3: temperature clamping "with a warning").
type GeminiWarning struct {
	Field   string
	Message string
}

// DomainToGemini converts a canonical request into generateContent form.
// System messages are dropped (Gemini generateContent has no system role in
// this wire shape); temperature is clamped to [0,1]; extraGenerationConfig
// (typically extra_body.generationConfig) overrides any field this
// function derives.
func DomainToGemini(req *domain.ChatRequest, extraGenerationConfig map[string]interface{}) (GeminiRequest, []GeminiWarning) {
	var warnings []GeminiWarning
	out := GeminiRequest{}

	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		out.Contents = append(out.Contents, domainMessageToGemini(m))
	}

	genConfig := map[string]interface{}{}
	if req.Temperature != nil {
		t := *req.Temperature
		if t < 0 || t > 1 {
			clamped := t
			if clamped < 0 {
				clamped = 0
			}
			if clamped > 1 {
				clamped = 1
			}
			warnings = append(warnings, GeminiWarning{Field: "temperature", Message: fmt.Sprintf("clamped %v to %v for Gemini", t, clamped)})
			t = clamped
		}
		genConfig["temperature"] = t
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		genConfig["topK"] = *req.TopK
	}
	if req.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		genConfig["stopSequences"] = req.Stop
	}
	for k, v := range extraGenerationConfig {
		genConfig[k] = v
	}
	if len(genConfig) > 0 {
		out.GenerationConfig = genConfig
	}

	if len(req.Tools) > 0 {
		decls := make([]GeminiFunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, GeminiFunctionDecl{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		out.Tools = []GeminiTool{{FunctionDeclarations: decls}}
	}

	return out, warnings
}

func domainMessageToGemini(m domain.ChatMessage) GeminiContent {
	if m.Role == domain.RoleTool {
		resp, _ := json.Marshal(map[string]string{"result": m.ContentText()})
		return GeminiContent{
			Role: "user",
			Parts: []GeminiPart{{
				FunctionResponse: &GeminiFunctionResult{Name: m.Name, Response: resp},
			}},
		}
	}

	role := "user"
	if m.Role == domain.RoleAssistant {
		role = "model"
	}

	var parts []GeminiPart
	if m.HasParts() {
		for _, p := range m.Parts {
			parts = append(parts, domainPartToGemini(p))
		}
	} else if m.Text != "" {
		parts = append(parts, GeminiPart{Text: m.Text})
	}
	for _, tc := range m.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		parts = append(parts, GeminiPart{FunctionCall: &GeminiFunctionCall{Name: tc.Function.Name, Args: args}})
	}
	return GeminiContent{Role: role, Parts: parts}
}

func domainPartToGemini(p domain.ContentPart) GeminiPart {
	switch v := p.(type) {
	case domain.TextPart:
		return GeminiPart{Text: v.Text}
	case domain.ImagePart:
		norm := domain.NormalizeImagePart(v)
		if norm.Base64 != "" {
			return GeminiPart{InlineData: &GeminiBlob{MimeType: norm.MIME, Data: norm.Base64}}
		}
		return GeminiPart{FileData: &GeminiFileData{MimeType: norm.MIME, FileURI: norm.URL}}
	default:
		return GeminiPart{Text: ""}
	}
}

// GeminiResponseToDomain normalizes a non-streaming Gemini response into
// the canonical OpenAI-shaped response (spec §4.3).
func GeminiResponseToDomain(resp GeminiResponse) *domain.ChatResponse {
	out := &domain.ChatResponse{
		Usage: domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	msg := domain.ChatMessage{Role: domain.RoleAssistant}
	var text string
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:   "call_" + strconv.Itoa(len(msg.ToolCalls)),
				Type: "function",
				Function: domain.ToolCallFunc{
					Name:      part.FunctionCall.Name,
					Arguments: string(part.FunctionCall.Args),
				},
			})
		default:
			text += part.Text
		}
	}
	msg.Text = text
	out.Message = msg
	if len(msg.ToolCalls) > 0 {
		out.FinishReason = domain.FinishToolCalls
	} else {
		out.FinishReason = geminiFinishReason(candidate.FinishReason)
	}
	return out
}

var geminiFinishReasons = map[string]domain.FinishReason{
	"STOP":        domain.FinishStop,
	"MAX_TOKENS":  domain.FinishLength,
	"SAFETY":      domain.FinishContentFilter,
	"RECITATION":  domain.FinishContentFilter,
	"OTHER":       domain.FinishError,
}

func geminiFinishReason(raw string) domain.FinishReason {
	if fr, ok := geminiFinishReasons[raw]; ok {
		return fr
	}
	return domain.FinishStop
}

// GeminiChunkToOpenAIDelta converts one Gemini streaming chunk (already
// JSON-decoded) into an OpenAI-style delta chunk map, per spec §4.3's
// streaming conversion rule. Terminal chunks (function-call parts present)
// get finish_reason "tool_calls" with synthesized tool_calls.
func GeminiChunkToOpenAIDelta(chunk GeminiResponse) map[string]interface{} {
	delta := map[string]interface{}{}
	finishReason := interface{}(nil)

	if len(chunk.Candidates) > 0 {
		candidate := chunk.Candidates[0]
		var text string
		var toolCalls []map[string]interface{}
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				toolCalls = append(toolCalls, map[string]interface{}{
					"id":   "call_" + strconv.Itoa(len(toolCalls)),
					"type": "function",
					"function": map[string]interface{}{
						"name":      part.FunctionCall.Name,
						"arguments": string(part.FunctionCall.Args),
					},
				})
				continue
			}
			text += part.Text
		}
		if text != "" {
			delta["content"] = text
		}
		if len(toolCalls) > 0 {
			delta["tool_calls"] = toolCalls
			finishReason = "tool_calls"
		} else if candidate.FinishReason != "" {
			finishReason = string(geminiFinishReason(candidate.FinishReason))
		}
	}

	return map[string]interface{}{
		"object": "chat.completion.chunk",
		"choices": []map[string]interface{}{{
			"delta":         delta,
			"finish_reason": finishReason,
		}},
	}
}

// DoneSentinel is the terminal SSE payload emitted after the last chunk.
const DoneSentinel = "[DONE]"
