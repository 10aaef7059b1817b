// Package gemini implements backend.Connector for Google's Gemini API in
// its three authentication shapes: public API key (generativelanguage
// endpoint), OAuth access token, and Vertex AI cloud-project/location
// routing. Grounded on the teacher's pkg/providers/google/provider.go
// (public API key) and pkg/providers/googlevertex/provider.go (the
// project/location URL template and Bearer-OAuth header), merged into one
// connector selected by Mode since all three ultimately dispatch the same
// translated Gemini wire body (pkg/translate's DomainToGemini output).
package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/llmgateway/proxycore/internal/httpclient"
	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/domain"
)

// Mode selects which of Gemini's three endpoint shapes a Connector talks to.
type Mode string

const (
	// ModePublicAPIKey targets generativelanguage.googleapis.com with an
	// API-key query parameter.
	ModePublicAPIKey Mode = "api_key"
	// ModeOAuth targets the same public endpoint but with a Bearer OAuth
	// access token instead of an API key.
	ModeOAuth Mode = "oauth"
	// ModeVertex targets a Vertex AI project/location endpoint with a
	// Bearer OAuth access token.
	ModeVertex Mode = "vertex"

	connectorName = "gemini"

	defaultPublicBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Connector dispatches requests already translated into Gemini wire JSON
// by pkg/translate.
type Connector struct {
	mode Mode

	mu      sync.RWMutex
	client  *httpclient.Client
	apiKey  string
	models  []string
}

// New returns an uninitialized connector for the given mode.
func New(mode Mode) *Connector {
	return &Connector{mode: mode}
}

func (c *Connector) Name() string { return connectorName }

func (c *Connector) Initialize(params backend.Params) error {
	switch c.mode {
	case ModePublicAPIKey:
		if params.APIKey == "" {
			return &domain.AuthenticationError{Message: "gemini public API key required"}
		}
		baseURL := params.BaseURL
		if baseURL == "" {
			baseURL = defaultPublicBaseURL
		}
		c.mu.Lock()
		c.client = httpclient.New(httpclient.Config{BaseURL: baseURL})
		c.apiKey = params.APIKey
		c.mu.Unlock()
		return nil

	case ModeOAuth:
		if params.APIKey == "" {
			return &domain.AuthenticationError{Message: "gemini OAuth access token required"}
		}
		baseURL := params.BaseURL
		if baseURL == "" {
			baseURL = defaultPublicBaseURL
		}
		c.mu.Lock()
		c.client = httpclient.New(httpclient.Config{
			BaseURL: baseURL,
			Headers: map[string]string{"Authorization": "Bearer " + params.APIKey},
		})
		c.apiKey = ""
		c.mu.Unlock()
		return nil

	case ModeVertex:
		project, _ := params.Extra["project"].(string)
		location, _ := params.Extra["location"].(string)
		if project == "" || location == "" {
			return &domain.InvalidRequestError{Code: "missing_vertex_params", Message: "gemini vertex mode requires project and location"}
		}
		if params.APIKey == "" {
			return &domain.AuthenticationError{Message: "gemini vertex OAuth access token required"}
		}
		baseURL := params.BaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1beta1/projects/%s/locations/%s/publishers/google",
				location, project, location)
		}
		c.mu.Lock()
		c.client = httpclient.New(httpclient.Config{
			BaseURL: baseURL,
			Headers: map[string]string{"Authorization": "Bearer " + params.APIKey},
		})
		c.apiKey = ""
		c.mu.Unlock()
		return nil

	default:
		return &domain.InvalidRequestError{Code: "unknown_mode", Message: fmt.Sprintf("unknown gemini mode %q", c.mode)}
	}
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
	client, apiKey := c.client, c.apiKey
	c.mu.RUnlock()
	if client == nil {
		return nil, &domain.InvalidRequestError{Code: "not_initialized", Message: "gemini connector not initialized"}
	}

	query := map[string]string{}
	if apiKey != "" {
		query["key"] = apiKey
	}
	var listResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "GET", Path: "/models", Query: query}, &listResp)
	if err != nil {
		return nil, &domain.ServiceUnavailableError{Backend: connectorName, Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, backendErrorFromResponse(resp.StatusCode, resp.Body)
	}

	models := make([]string, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		models = append(models, m.Name)
	}
	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return models, nil
}

func (c *Connector) ChatCompletions(ctx context.Context, req backend.ChatCompletionsRequest) (*backend.ResponseEnvelope, *backend.StreamingResponseEnvelope, error) {
	c.mu.RLock()
	client, apiKey := c.client, c.apiKey
	c.mu.RUnlock()
	if client == nil {
		return nil, nil, &domain.InvalidRequestError{Code: "not_initialized", Message: "gemini connector not initialized"}
	}

	action := "generateContent"
	if req.Stream {
		action = "streamGenerateContent"
	}
	path := fmt.Sprintf("/models/%s:%s", req.EffectiveModel, action)
	query := map[string]string{}
	if apiKey != "" {
		query["key"] = apiKey
	}
	if req.Stream {
		query["alt"] = "sse"
	}

	if req.Stream {
		httpResp, err := client.DoStream(ctx, httpclient.Request{Method: "POST", Path: path, Query: query, Body: req.WireBody})
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
	resp, err := client.DoJSON(ctx, httpclient.Request{Method: "POST", Path: path, Query: query, Body: req.WireBody}, &content)
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
		return &domain.AuthenticationError{Message: fmt.Sprintf("gemini rejected credentials (%d)", status)}
	}
	return &domain.BackendError{Backend: connectorName, StatusCode: status, Message: string(body)}
}

func streamDispatchError(err error) error {
	if se, ok := err.(*httpclient.StatusError); ok {
		return backendErrorFromResponse(se.StatusCode, se.Body)
	}
	return &domain.ServiceUnavailableError{Backend: connectorName, Cause: err}
}
