// Package backend defines the connector contract every backend
// implementation (OpenAI-compatible, Anthropic, Gemini, Qwen OAuth, ...)
// satisfies (spec §4.6), grounded on the teacher's pkg/provider.Provider /
// LanguageModel split — generalized from "construct a Vercel-AI-SDK
// LanguageModel" to "dispatch one already-translated wire request and
// return an envelope", since this proxy's connectors sit after
// pkg/translate rather than building requests themselves.
package backend

import (
	"context"
	"io"
)

// ResponseEnvelope is a connector's non-streaming result.
type ResponseEnvelope struct {
	Content    map[string]interface{}
	Headers    map[string]string
	StatusCode int
	Usage      *Usage
	Metadata   map[string]interface{}
}

// StreamingResponseEnvelope is a connector's streaming result: Content is
// the raw byte stream (already in the upstream's own wire format — SSE
// lines, in every connector this proxy ships); the caller is responsible
// for closing it.
type StreamingResponseEnvelope struct {
	Content   io.ReadCloser
	MediaType string
	Headers   map[string]string
}

// Usage mirrors domain.Usage without importing pkg/domain, so backend
// connectors can depend only on their own wire types. No connector in this
// module fills it and the dispatcher does not read it; token counts reach
// callers through the translated response body.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Params configures a connector instance (spec §4.6 initialize(params)).
type Params struct {
	APIKey  string
	BaseURL string
	Extra   map[string]interface{}
}

// Connector is the contract every backend implementation satisfies.
// Initialize must be idempotent; implementations may defer model-list or
// token fetches until first use.
type Connector interface {
	// Name identifies the connector (e.g. "openai", "anthropic", "gemini").
	Name() string

	// Initialize stores params. Safe to call more than once; later calls
	// replace the stored configuration.
	Initialize(params Params) error

	// GetAvailableModels returns the connector's last-known model list,
	// cached since the last GetAvailableModelsAsync refresh.
	GetAvailableModels() []string

	// GetAvailableModelsAsync refreshes and returns the model list from
	// the backend's discovery endpoint, when supported.
	GetAvailableModelsAsync(ctx context.Context) ([]string, error)

	// ChatCompletions dispatches one request already in the connector's
	// own wire JSON (translated by pkg/translate) and returns either a
	// ResponseEnvelope or a StreamingResponseEnvelope depending on
	// whether the request asked for streaming.
	ChatCompletions(ctx context.Context, req ChatCompletionsRequest) (*ResponseEnvelope, *StreamingResponseEnvelope, error)
}

// ChatCompletionsRequest bundles the already-translated wire body with the
// dispatch-time parameters a connector needs.
type ChatCompletionsRequest struct {
	WireBody       map[string]interface{}
	EffectiveModel string
	Stream         bool
	Identity       string
}

// ModelLister is an optional capability: a connector that supports
// provider-specific model discovery beyond the generic
// GetAvailableModelsAsync refresh (spec §4.6 list_models).
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo is one entry in a provider's model catalog.
type ModelInfo struct {
	ID          string
	DisplayName string
	ContextSize int
}
