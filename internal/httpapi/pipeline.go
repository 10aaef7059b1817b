package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/llmgateway/proxycore/internal/sse"
	"github.com/llmgateway/proxycore/pkg/backend"
	"github.com/llmgateway/proxycore/pkg/command"
	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/reqmw"
	"github.com/llmgateway/proxycore/pkg/respmw"
	"github.com/llmgateway/proxycore/pkg/session"
	"github.com/llmgateway/proxycore/pkg/translate"
)

// Outcome is the result of running one request through the full pipeline.
// Exactly one of CommandReply, Response, or Stream is set.
type Outcome struct {
	CommandReply string
	Response     *domain.ChatResponse
	Stream       <-chan domain.StreamChunk

	BackendName string
	ModelName   string
	SessionID   string
}

// Execute runs the full pipeline described in spec §4: session lookup,
// in-band command extraction, the request middleware chain, connector
// dispatch (with failover), and the response middleware chain. req.Model
// must already be in "connector:model" or "connector/model" form, or name
// a registered alias or failover route.
func (d *Dependencies) Execute(ctx context.Context, req *domain.ChatRequest, sessionID string) (*Outcome, error) {
	sess := d.Sessions.GetOrCreateSession(sessionID)

	scan := command.ScanMessages(d.Parser, req.Messages)
	if scan.Found {
		return d.executeCommand(req, sessionID, sess, scan)
	}

	newReq, newState := d.ReqChain.Run(ctx, reqmw.Context{SessionID: sessionID}, req, sess.State)
	sess = d.Sessions.UpdateSession(sessionID, func(s session.Session) session.Session {
		s.State = newState
		return s
	})

	conn, format, effectiveModel, err := d.resolveDispatchTarget(newReq)
	if err != nil {
		return nil, err
	}

	if newReq.Stream {
		return d.dispatchStreaming(ctx, conn, format, effectiveModel, newReq, sess, sessionID)
	}
	return d.dispatchUnary(ctx, conn, format, effectiveModel, newReq, sess, sessionID)
}

func (d *Dependencies) executeCommand(req *domain.ChatRequest, sessionID string, sess session.Session, scan command.ScanResult) (*Outcome, error) {
	handler, ok := d.Commands.Lookup(scan.Command.Name)
	var result command.Result
	if !ok {
		result = command.Result{Success: false, Message: fmt.Sprintf("unknown command %q", scan.Command.Name), State: sess.State}
	} else {
		result = handler(scan.Command, sess.State)
	}

	d.Sessions.UpdateSession(sessionID, func(s session.Session) session.Session {
		s.State = result.State
		return s
	})

	return &Outcome{CommandReply: result.Message, SessionID: sessionID}, nil
}

// resolveDispatchTarget resolves req.Model to a connector, the connector's
// native wire format, and the effective (connector-local) model name.
func (d *Dependencies) resolveDispatchTarget(req *domain.ChatRequest) (backend.Connector, BackendFormat, string, error) {
	conn, effectiveModel, err := d.Registry.Resolve(req.Model)
	if err != nil {
		return nil, "", "", err
	}
	format, ok := d.BackendFormats[conn.Name()]
	if !ok {
		format = FormatOpenAI
	}
	return conn, format, effectiveModel, nil
}

// lastUserText returns the last message's text content, or "" if there are
// no messages, for the session history record.
func lastUserText(messages []domain.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].ContentText()
}

// failoverElements returns the pending failover route elements recorded by
// reqmw.FailoverExpander, if any.
func failoverElements(req *domain.ChatRequest) []string {
	v, ok := req.InternalExtra("failover_elements")
	if !ok {
		return nil
	}
	elems, _ := v.([]string)
	return elems
}

func (d *Dependencies) dispatchUnary(ctx context.Context, conn backend.Connector, format BackendFormat, effectiveModel string, req *domain.ChatRequest, sess session.Session, sessionID string) (*Outcome, error) {
	elements := failoverElements(req)
	if len(elements) == 0 {
		elements = []string{conn.Name() + ":" + effectiveModel}
	}

	var lastErr error
	for i, element := range elements {
		c := conn
		em := effectiveModel
		if i > 0 {
			var err error
			c, em, err = d.Registry.Resolve(element)
			if err != nil {
				lastErr = err
				continue
			}
		}
		resp, err := d.dispatchOnceUnary(ctx, c, format, em, req)
		if err == nil {
			respCtx := respmw.Context{SessionID: sessionID, BackendName: c.Name(), ModelName: em}
			finalResp, newState := d.RespChain.RunUnary(ctx, respCtx, resp, sess.State)
			d.Sessions.UpdateSession(sessionID, func(s session.Session) session.Session {
				s.State = newState
				s.History = session.AppendInteraction(s.History, session.Interaction{
					Prompt:    lastUserText(req.Messages),
					Handler:   session.HandlerBackend,
					Backend:   c.Name(),
					Model:     em,
					Response:  finalResp.Message.ContentText(),
					Timestamp: time.Now(),
				})
				return s
			})
			return &Outcome{Response: finalResp, BackendName: c.Name(), ModelName: em, SessionID: sessionID}, nil
		}
		lastErr = err
		if !domain.IsRetryableFailover(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (d *Dependencies) dispatchOnceUnary(ctx context.Context, conn backend.Connector, format BackendFormat, effectiveModel string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	wireBody, err := encodeWireBody(format, req, d.DefaultMaxTokens)
	if err != nil {
		return nil, &domain.InvalidRequestError{Code: "encode_failed", Message: err.Error()}
	}

	envelope, _, err := conn.ChatCompletions(ctx, backend.ChatCompletionsRequest{
		WireBody:       wireBody,
		EffectiveModel: effectiveModel,
		Stream:         false,
	})
	if err != nil {
		return nil, err
	}
	return decodeWireResponse(format, envelope.Content)
}

func (d *Dependencies) dispatchStreaming(ctx context.Context, conn backend.Connector, format BackendFormat, effectiveModel string, req *domain.ChatRequest, sess session.Session, sessionID string) (*Outcome, error) {
	elements := failoverElements(req)
	if len(elements) == 0 {
		elements = []string{conn.Name() + ":" + effectiveModel}
	}

	var lastErr error
	for i, element := range elements {
		c := conn
		em := effectiveModel
		if i > 0 {
			var err error
			c, em, err = d.Registry.Resolve(element)
			if err != nil {
				lastErr = err
				continue
			}
		}

		wireBody, err := encodeWireBody(format, req, d.DefaultMaxTokens)
		if err != nil {
			return nil, &domain.InvalidRequestError{Code: "encode_failed", Message: err.Error()}
		}

		_, streamEnv, err := c.ChatCompletions(ctx, backend.ChatCompletionsRequest{
			WireBody:       wireBody,
			EffectiveModel: em,
			Stream:         true,
		})
		if err != nil {
			lastErr = err
			if domain.IsRetryableFailover(err) {
				continue
			}
			return nil, err
		}

		raw := decodeWireStream(format, streamEnv.Content)
		respCtx := respmw.Context{SessionID: sessionID, BackendName: c.Name(), ModelName: em}
		wrapped := d.RespChain.RunStream(ctx, respCtx, raw, sess.State)
		return &Outcome{Stream: wrapped, BackendName: c.Name(), ModelName: em, SessionID: sessionID}, nil
	}
	return nil, lastErr
}

// encodeWireBody translates req into the connector's native wire JSON,
// shallow-merging the request's public extra_body fields on top.
func encodeWireBody(format BackendFormat, req *domain.ChatRequest, defaultMaxTokens int) (map[string]interface{}, error) {
	var wire interface{}
	switch format {
	case FormatAnthropic:
		maxTokens := defaultMaxTokens
		if req.MaxTokens != nil {
			maxTokens = *req.MaxTokens
		}
		if maxTokens <= 0 {
			maxTokens = 4096
		}
		wire = translate.DomainToAnthropic(req, maxTokens)
	case FormatGemini:
		var extraGenConfig map[string]interface{}
		if v, ok := req.ExtraBody["generationConfig"]; ok {
			extraGenConfig, _ = v.(map[string]interface{})
		}
		wireReq, _ := translate.DomainToGemini(req, extraGenConfig)
		wire = wireReq
	default:
		wire = translate.DomainToOpenAI(req)
	}

	b, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range req.PublicExtraBody() {
		m[k] = v
	}
	m["stream"] = req.Stream
	return m, nil
}

func decodeWireResponse(format BackendFormat, content map[string]interface{}) (*domain.ChatResponse, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatAnthropic:
		var wire translate.AnthropicResponse
		if err := json.Unmarshal(b, &wire); err != nil {
			return nil, err
		}
		return translate.AnthropicResponseToDomain(wire), nil
	case FormatGemini:
		var wire translate.GeminiResponse
		if err := json.Unmarshal(b, &wire); err != nil {
			return nil, err
		}
		return translate.GeminiResponseToDomain(wire), nil
	default:
		var wire translate.OpenAIResponse
		if err := json.Unmarshal(b, &wire); err != nil {
			return nil, err
		}
		return translate.OpenAIResponseToDomain(wire), nil
	}
}

// decodeWireStream reads body as the connector's native SSE framing and
// emits canonical StreamChunks on the returned channel, closing it (and
// body) once the upstream stream ends.
func decodeWireStream(format BackendFormat, body io.ReadCloser) <-chan domain.StreamChunk {
	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer body.Close()

		parser := sse.NewParser(body)
		state := translate.NewAnthropicStreamState()
		for {
			evt, err := parser.Next()
			if err != nil {
				return
			}
			if sse.IsDone(evt) {
				return
			}
			if evt.Data == "" {
				continue
			}

			switch format {
			case FormatAnthropic:
				chunk, ok, err := state.AnthropicStreamEventToDomain(evt.Event, []byte(evt.Data))
				if err != nil || !ok {
					continue
				}
				out <- chunk
			case FormatGemini:
				var wire translate.GeminiResponse
				if err := json.Unmarshal([]byte(evt.Data), &wire); err != nil {
					continue
				}
				out <- translate.GeminiStreamChunkToDomain(wire)
			default:
				chunk, err := translate.OpenAIStreamChunkToDomain([]byte(evt.Data))
				if err != nil {
					continue
				}
				out <- chunk
			}
		}
	}()
	return out
}
