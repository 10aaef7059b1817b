package respmw

import (
	"context"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/session"
)

// ReactorPriority runs first among response middlewares: every later
// middleware inspects whatever tool calls survive reactor dispatch.
const ReactorPriority = 100

// ToolCallReactorMiddleware dispatches each detected tool call to the
// reactor, replacing the response with the first handler's steering
// reply if any handler swallows the call (spec §4.5 references §4.7).
type ToolCallReactorMiddleware struct {
	reactor *reactor.Reactor
}

func NewToolCallReactorMiddleware(r *reactor.Reactor) *ToolCallReactorMiddleware {
	return &ToolCallReactorMiddleware{reactor: r}
}

func (m *ToolCallReactorMiddleware) Name() string  { return "tool_call_reactor" }
func (m *ToolCallReactorMiddleware) Priority() int { return ReactorPriority }

func (m *ToolCallReactorMiddleware) Apply(_ context.Context, mwCtx Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	calls := reactor.DetectToolCalls(resp)
	for _, call := range calls {
		replaced, swallowed := m.reactor.Dispatch(mwCtx.SessionID, mwCtx.BackendName, mwCtx.ModelName, resp, call, "")
		if swallowed {
			return replaced, state
		}
	}
	return resp, state
}
