// Package reactor implements the tool-call reactor (spec §4.7): an
// observable, interceptable pipeline that inspects each tool call in a
// backend response and lets registered handlers swallow or replace it.
// Grounded on the teacher's registry.go unique-name-registration pattern
// and the priority-ordered struct-of-function-fields idiom of
// pkg/middleware/language_model_middleware.go, generalized to a named
// Handler interface since reactor handlers must be individually
// rate-limited and looked up by name for duplicate-registration checks.
package reactor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// Context is what a Handler inspects to decide whether and how to react.
type Context struct {
	SessionID     string
	BackendName   string
	ModelName     string
	FullResponse  *domain.ChatResponse
	ToolName      string
	ToolArguments map[string]interface{}
	CallingAgent  string
	Timestamp     time.Time
}

// Result is what Handler.Handle returns.
type Result struct {
	ShouldSwallow       bool
	ReplacementResponse *domain.ChatResponse
	Metadata            map[string]interface{}
}

// RateLimit bounds how often a handler's CanHandle may fire per session.
type RateLimit struct {
	CallsPerWindow int
	WindowSeconds  int
}

// Handler reacts to one tool call at a time.
type Handler interface {
	Name() string
	Priority() int
	CanHandle(ctx Context) bool
	Handle(ctx Context) Result
	// RateLimit returns the handler's rate limit, or the zero value for
	// "unlimited".
	RateLimit() RateLimit
}

// Reactor dispatches tool calls to registered handlers in priority order.
type Reactor struct {
	mu       sync.Mutex
	handlers map[string]Handler
	order    []Handler

	history *historyTracker
	limiter *rateLimiter

	onHandlerError func(handlerName string, err error)
}

// NewReactor returns an empty Reactor.
func NewReactor() *Reactor {
	return &Reactor{
		handlers: make(map[string]Handler),
		history:  newHistoryTracker(1000),
		limiter:  newRateLimiter(),
	}
}

// OnHandlerError installs a callback invoked when a handler panics; the
// chain continues regardless (spec §4.7: "Handler exceptions are logged
// and do not abort the chain").
func (r *Reactor) OnHandlerError(f func(handlerName string, err error)) {
	r.onHandlerError = f
}

// Register adds h. Registration is unique by name; a duplicate name
// returns an error and h is not installed.
func (r *Reactor) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Name()]; exists {
		return fmt.Errorf("reactor: handler %q already registered", h.Name())
	}
	r.handlers[h.Name()] = h
	r.order = append(r.order, h)
	sort.SliceStable(r.order, func(i, j int) bool {
		return r.order[i].Priority() > r.order[j].Priority()
	})
	return nil
}

// ToolCall bundles the parsed-or-passthrough arguments for one detected
// tool call alongside its wire name.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// Dispatch records the tool call in the session history ring, then runs
// registered handlers in descending priority order until one swallows the
// call. It returns the (possibly replaced) response and whether any
// handler swallowed it.
func (r *Reactor) Dispatch(sessionID, backendName, modelName string, resp *domain.ChatResponse, call ToolCall, callingAgent string) (*domain.ChatResponse, bool) {
	r.history.record(sessionID, call)

	ctx := Context{
		SessionID:     sessionID,
		BackendName:   backendName,
		ModelName:     modelName,
		FullResponse:  resp,
		ToolName:      call.Name,
		ToolArguments: call.Arguments,
		CallingAgent:  callingAgent,
		Timestamp:     time.Now(),
	}

	r.mu.Lock()
	handlers := make([]Handler, len(r.order))
	copy(handlers, r.order)
	r.mu.Unlock()

	for _, h := range handlers {
		if limit := h.RateLimit(); limit.CallsPerWindow > 0 {
			if !r.limiter.allow(sessionID, h.Name(), limit) {
				continue
			}
		}
		if !r.safeCanHandle(h, ctx) {
			continue
		}
		result := r.safeHandle(h, ctx)
		if result.ShouldSwallow {
			if result.ReplacementResponse != nil {
				return result.ReplacementResponse, true
			}
			return resp, true
		}
	}
	return resp, false
}

func (r *Reactor) safeCanHandle(h Handler, ctx Context) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			if r.onHandlerError != nil {
				r.onHandlerError(h.Name(), fmt.Errorf("can_handle panic: %v", rec))
			}
		}
	}()
	return h.CanHandle(ctx)
}

func (r *Reactor) safeHandle(h Handler, ctx Context) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			if r.onHandlerError != nil {
				r.onHandlerError(h.Name(), fmt.Errorf("handle panic: %v", rec))
			}
		}
	}()
	return h.Handle(ctx)
}

// History returns the recorded tool calls for sessionID, oldest first.
func (r *Reactor) History(sessionID string) []ToolCall {
	return r.history.get(sessionID)
}
