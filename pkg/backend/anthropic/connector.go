// Package anthropic implements backend.Connector for the Anthropic
// messages API, grounded on the teacher's pkg/providers/anthropic provider
// (same config/client shape as openaicompat's grounding) but its own
// package since Anthropic's auth header (x-api-key + anthropic-version)
// and endpoint path differ from the OpenAI convention.
package anthropic

import (
	"context"
	"fmt"
	"sync"

	"github.com/llmgateway/proxycore/internal/httpclient"
	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
)

const (
	// DefaultBaseURL is Anthropic's public API endpoint.
	DefaultBaseURL = "https://api.anthropic.com/v1"
	// DefaultAPIVersion is sent as the anthropic-version header.
	DefaultAPIVersion = "2023-06-01"

	connectorName = "anthropic"
)

// Connector dispatches chat-completions requests already translated into
// Anthropic messages-API wire JSON by pkg/translate.
type Connector struct {
	apiVersion string

	mu     sync.RWMutex
	client *httpclient.Client
	models []string
}

// New returns an uninitialized connector; call Initialize before use.
func New() *Connector {
	return &Connector{apiVersion: DefaultAPIVersion}
}

func (c *Connector) Name() string { return connectorName }

func (c *Connector) Initialize(params backend.Params) error {
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if params.APIKey == "" {
		return &domain.AuthenticationError{Message: "anthropic connector requires an API key"}
	}

	headers := map[string]string{
		"x-api-key":         params.APIKey,
		"anthropic-version": c.apiVersion,
	}
	if v, ok := params.Extra["api_version"].(string); ok && v != "" {
		headers["anthropic-version"] = v
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

// GetAvailableModelsAsync refreshes the model list from Anthropic's
// /models endpoint.
func (c *Connector) GetAvailableModelsAsync(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return nil, &domain.InvalidRequestError{Code: "not_initialized", Message: "anthropic connector not initialized"}
	}

	var listResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "GET", Path: "/models"}, &listResp)
	if err != nil {
		return nil, &domain.ServiceUnavailableError{Backend: connectorName, Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, backendErrorFromResponse(resp.StatusCode, resp.Body)
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
		return nil, nil, &domain.InvalidRequestError{Code: "not_initialized", Message: "anthropic connector not initialized"}
	}

	if req.Stream {
		httpResp, err := client.DoStream(ctx, httpclient.Request{Method: "POST", Path: "/messages", Body: req.WireBody})
		if err != nil {
			return nil, nil, streamDispatchError(err)
		}
		headers := map[string]string{}
		for k := range httpResp.Header {
			headers[k] = httpResp.Header.Get(k)
		}
		return nil, &backend.StreamingResponseEnvelope{Content: httpResp.Body, MediaType: "text/event-stream", Headers: headers}, nil
	}

	var content map[string]interface{}
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "POST", Path: "/messages", Body: req.WireBody}, &content)
	if err != nil {
		return nil, nil, &domain.ServiceUnavailableError{Backend: connectorName, Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, nil, backendErrorFromResponse(resp.StatusCode, resp.Body)
	}

	headers := map[string]string{}
	for k := range resp.Headers {
		headers[k] = resp.Headers.Get(k)
	}
	return &backend.ResponseEnvelope{Content: content, Headers: headers, StatusCode: resp.StatusCode}, nil, nil
}

func backendErrorFromResponse(status int, body []byte) error {
	if status == 401 || status == 403 {
		return &domain.AuthenticationError{Message: fmt.Sprintf("anthropic rejected credentials (%d)", status)}
	}
	return &domain.BackendError{Backend: connectorName, StatusCode: status, Message: string(body)}
}

func streamDispatchError(err error) error {
	if se, ok := err.(*httpclient.StatusError); ok {
		return backendErrorFromResponse(se.StatusCode, se.Body)
	}
	return &domain.ServiceUnavailableError{Backend: connectorName, Cause: err}
}
