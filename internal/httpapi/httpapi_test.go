package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/command"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/registry"
	"github.com/llmgateway/proxycore/pkg/reqmw"
	"github.com/llmgateway/proxycore/pkg/respmw"
	"github.com/llmgateway/proxycore/pkg/session"
)

// stubConnector is a canned backend.Connector used to exercise the
// pipeline without a network call, grounded on the teacher's
// testutil.MockLanguageModel call-recording pattern.
type stubConnector struct {
	name         string
	replyContent string
}

func (s *stubConnector) Name() string                      { return s.name }
func (s *stubConnector) Initialize(backend.Params) error    { return nil }
func (s *stubConnector) GetAvailableModels() []string       { return []string{"test-model"} }
func (s *stubConnector) GetAvailableModelsAsync(context.Context) ([]string, error) {
	return s.GetAvailableModels(), nil
}

func (s *stubConnector) ChatCompletions(ctx context.Context, req backend.ChatCompletionsRequest) (*backend.ResponseEnvelope, *backend.StreamingResponseEnvelope, error) {
	if req.Stream {
		pr, pw := io.Pipe()
		go func() {
			defer pw.Close()
			io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\""+s.replyContent+"\"}}]}\n\n")
			io.WriteString(pw, "data: [DONE]\n\n")
		}()
		return nil, &backend.StreamingResponseEnvelope{Content: pr, MediaType: "text/event-stream"}, nil
	}
	return &backend.ResponseEnvelope{
		Content: map[string]interface{}{
			"id":     "cmpl-test",
			"model":  req.EffectiveModel,
			"choices": []interface{}{
				map[string]interface{}{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": s.replyContent},
				},
			},
			"usage": map[string]interface{}{"prompt_tokens": 3, "completion_tokens": 5, "total_tokens": 8},
		},
	}, nil, nil
}

func newTestDependencies(t *testing.T) *Dependencies {
	t.Helper()

	reg := registry.New()
	reg.Register("test", &stubConnector{name: "test", replyContent: "hello back"})

	cmdRegistry := command.NewRegistry()
	command.RegisterBuiltins(cmdRegistry, command.Deps{
		IsKnownBackend: func(name string) bool {
			_, err := reg.Connector(name)
			return err == nil
		},
	})

	return &Dependencies{
		Registry:         reg,
		BackendFormats:   map[string]BackendFormat{"test": FormatOpenAI},
		Sessions:         session.NewService(session.WithTTL(time.Hour)),
		Commands:         cmdRegistry,
		Parser:           command.NewParser(""),
		ReqChain:         reqmw.NewChain(reqmw.NewOneoffConsumer(), reqmw.NewFailoverExpander(), reqmw.NewPlanningRouter()),
		RespChain:        respmw.NewChain(respmw.NewToolCallReactorMiddleware(reactor.NewReactor())),
		Reactor:          reactor.NewReactor(),
		Tracer:           noop.NewTracerProvider().Tracer("test"),
		DefaultMaxTokens: 1024,
	}
}

func TestHandleChatCompletions_Unary(t *testing.T) {
	deps := newTestDependencies(t)
	router := NewRouter(deps, time.Second*5)

	body := `{"model":"test:test-model","messages":[{"role":"user","content":"hi"}],"session_id":"sess-1"}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	choices, ok := out["choices"].([]interface{})
	require.True(t, ok)
	require.Len(t, choices, 1)
	msg := choices[0].(map[string]interface{})["message"].(map[string]interface{})
	require.Equal(t, "hello back", msg["content"])
}

func TestHandleChatCompletions_UnknownModel(t *testing.T) {
	deps := newTestDependencies(t)
	router := NewRouter(deps, time.Second*5)

	body := `{"model":"nope:test-model","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
}

func TestHandleChatCompletions_InBandCommandShortCircuits(t *testing.T) {
	deps := newTestDependencies(t)
	router := NewRouter(deps, time.Second*5)

	body := `{"model":"test:test-model","messages":[{"role":"user","content":"!/hello"}],"session_id":"sess-2"}`
	req := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "sess-2", rec.Header().Get("X-Session-Id"))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	choices := out["choices"].([]interface{})
	msg := choices[0].(map[string]interface{})["message"].(map[string]interface{})
	require.NotEmpty(t, msg["content"])
}

func TestHandleListModels(t *testing.T) {
	deps := newTestDependencies(t)
	router := NewRouter(deps, time.Second*5)

	req := httptest.NewRequest("GET", "/v1/models", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	data := out["data"].([]interface{})
	require.Len(t, data, 1)
	require.Equal(t, "test:test-model", data[0].(map[string]interface{})["id"])
}
