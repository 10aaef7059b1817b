// Package openaicompat implements backend.Connector for any backend that
// speaks the OpenAI chat-completions wire format — OpenAI itself,
// OpenRouter, and ZhipuAI all reuse this connector with only a different
// base URL and auth header, matching how the spec's domain stack expects
// "OpenAI-compatible" backends to share one implementation. Grounded on
// the teacher's pkg/providers/openai/provider.go + language_model.go
// split (config struct + http.Client + Name()), generalized from
// "construct a LanguageModel" to "dispatch a pre-translated wire body."
package openaicompat

import (
	"context"
	"fmt"
	"sync"

	"github.com/llmgateway/proxycore/internal/httpclient"
	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
)

// Config configures one OpenAI-compatible connector instance.
type Config struct {
	// Name is the connector's registry name (e.g. "openai", "openrouter").
	Name string
	// DefaultBaseURL is used when Params.BaseURL is empty at Initialize time.
	DefaultBaseURL string
	// AuthHeader names the header carrying the API key (default
	// "Authorization" with a "Bearer " prefix; ZhipuAI and OpenRouter both
	// use the same convention so this rarely needs overriding).
	AuthHeader string
}

// Connector dispatches chat-completions requests already translated into
// OpenAI wire JSON by pkg/translate.
type Connector struct {
	cfg Config

	mu     sync.RWMutex
	client *httpclient.Client
	models []string
}

// New returns an uninitialized connector; call Initialize before use.
func New(cfg Config) *Connector {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}
	return &Connector{cfg: cfg}
}

func (c *Connector) Name() string { return c.cfg.Name }

func (c *Connector) Initialize(params backend.Params) error {
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = c.cfg.DefaultBaseURL
	}
	if baseURL == "" {
		return &domain.InvalidRequestError{Param: "base_url", Code: "missing_base_url", Message: c.cfg.Name + " requires a base URL"}
	}

	headers := map[string]string{}
	if params.APIKey != "" {
		if c.cfg.AuthHeader == "Authorization" {
			headers["Authorization"] = "Bearer " + params.APIKey
		} else {
			headers[c.cfg.AuthHeader] = params.APIKey
		}
	}

	c.mu.Lock()
	c.client = httpclient.New(httpclient.Config{BaseURL: baseURL, Headers: headers})
	c.mu.Unlock()
	return nil
}

func (c *Connector) GetAvailableModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Connector) GetAvailableModelsAsync(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return nil, &domain.InvalidRequestError{Code: "not_initialized", Message: c.cfg.Name + " connector not initialized"}
	}

	var listResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "GET", Path: "/models"}, &listResp)
	if err != nil {
		return nil, &domain.ServiceUnavailableError{Backend: c.cfg.Name, Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, backendErrorFromResponse(c.cfg.Name, resp.StatusCode, resp.Body)
	}

	models := make([]string, 0, len(listResp.Data))
	for _, m := range listResp.Data {
		models = append(models, m.ID)
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return models, nil
}

func (c *Connector) ChatCompletions(ctx context.Context, req backend.ChatCompletionsRequest) (*backend.ResponseEnvelope, *backend.StreamingResponseEnvelope, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return nil, nil, &domain.InvalidRequestError{Code: "not_initialized", Message: c.cfg.Name + " connector not initialized"}
	}

	if req.Stream {
		httpResp, err := client.DoStream(ctx, httpclient.Request{Method: "POST", Path: "/chat/completions", Body: req.WireBody})
		if err != nil {
			return nil, nil, streamDispatchError(c.cfg.Name, err)
		}
		headers := map[string]string{}
		for k := range httpResp.Header {
			headers[k] = httpResp.Header.Get(k)
		}
		return nil, &backend.StreamingResponseEnvelope{
			Content:   httpResp.Body,
			MediaType: "text/event-stream",
			Headers:   headers,
		}, nil
	}

	var content map[string]interface{}
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "POST", Path: "/chat/completions", Body: req.WireBody}, &content)
	if err != nil {
		return nil, nil, &domain.ServiceUnavailableError{Backend: c.cfg.Name, Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, nil, backendErrorFromResponse(c.cfg.Name, resp.StatusCode, resp.Body)
	}

	headers := map[string]string{}
	for k := range resp.Headers {
		headers[k] = resp.Headers.Get(k)
	}
	return &backend.ResponseEnvelope{Content: content, Headers: headers, StatusCode: resp.StatusCode}, nil, nil
}

func backendErrorFromResponse(name string, status int, body []byte) error {
	if status == 401 || status == 403 {
		return &domain.AuthenticationError{Message: fmt.Sprintf("%s rejected credentials (%d)", name, status)}
	}
	return &domain.BackendError{Backend: name, StatusCode: status, Message: string(body)}
}

func streamDispatchError(name string, err error) error {
	if se, ok := err.(*httpclient.StatusError); ok {
		return backendErrorFromResponse(name, se.StatusCode, se.Body)
	}
	return &domain.ServiceUnavailableError{Backend: name, Cause: err}
}
