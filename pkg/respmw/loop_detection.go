package respmw

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/session"
)

// LoopDetectionPriority runs last: every other middleware has already had
// its say about the response's content before a repeat is judged.
const LoopDetectionPriority = 10

const loopDetectionSteeringText = "You have repeated the same tool call. Try a different approach instead of " +
	"repeating it."

const loopDetectionTerminationText = "This tool call has repeated beyond the configured limit and the response " +
	"was terminated."

// LoopDetector hashes successive tool-call signatures (tool name +
// canonical-JSON arguments) per session and, once a signature repeats
// beyond session.LoopConfig.ToolLoopMaxRepeats within
// ToolLoopTTLSeconds, either terminates the response (break mode) or
// injects one steering warning before terminating on the following
// repeat (chance_then_break mode). Spec §4.5.
type LoopDetector struct {
	mu       sync.Mutex
	sessions map[string]*sessionLoopTracker
}

func NewLoopDetector() *LoopDetector {
	return &LoopDetector{sessions: make(map[string]*sessionLoopTracker)}
}

func (d *LoopDetector) Name() string  { return "tool_call_loop_detector" }
func (d *LoopDetector) Priority() int { return LoopDetectionPriority }

type sessionLoopTracker struct {
	mu      sync.Mutex
	entries map[string]*loopEntry
}

type loopEntry struct {
	seenAt      []time.Time
	chanceGiven bool
}

func (d *LoopDetector) trackerFor(sessionID string) *sessionLoopTracker {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.sessions[sessionID]
	if !ok {
		t = &sessionLoopTracker{entries: make(map[string]*loopEntry)}
		d.sessions[sessionID] = t
	}
	return t
}

// signature returns a stable hash of a tool call's name and arguments.
func signature(name string, arguments string) string {
	var canon interface{}
	payload := arguments
	if err := json.Unmarshal([]byte(arguments), &canon); err == nil {
		if b, err := json.Marshal(canon); err == nil {
			payload = string(b)
		}
	}
	sum := sha256.Sum256([]byte(name + "\x00" + payload))
	return hex.EncodeToString(sum[:])
}

// record prunes timestamps outside ttl, appends now, and reports the
// repeat count within the window plus whether a chance was already given.
func (t *sessionLoopTracker) record(sig string, now time.Time, ttl time.Duration) (count int, chanceGiven bool, markChance func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[sig]
	if !ok {
		e = &loopEntry{}
		t.entries[sig] = e
	}
	pruned := e.seenAt[:0]
	for _, ts := range e.seenAt {
		if now.Sub(ts) <= ttl {
			pruned = append(pruned, ts)
		}
	}
	e.seenAt = append(pruned, now)

	return len(e.seenAt), e.chanceGiven, func() { e.chanceGiven = true }
}

func (d *LoopDetector) Apply(_ context.Context, mwCtx Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	if !state.LoopConfig.ToolLoopDetectionEnabled || len(resp.Message.ToolCalls) == 0 {
		return resp, state
	}

	maxRepeats := 3
	if state.LoopConfig.ToolLoopMaxRepeats != nil {
		maxRepeats = *state.LoopConfig.ToolLoopMaxRepeats
	}
	ttlSeconds := 120
	if state.LoopConfig.ToolLoopTTLSeconds != nil {
		ttlSeconds = *state.LoopConfig.ToolLoopTTLSeconds
	}
	ttl := time.Duration(ttlSeconds) * time.Second

	tracker := d.trackerFor(mwCtx.SessionID)
	now := time.Now()

	sigs := toolCallSignatures(resp.Message.ToolCalls)
	sort.Strings(sigs)

	for _, sig := range sigs {
		count, chanceGiven, markChance := tracker.record(sig, now, ttl)
		if count <= maxRepeats {
			continue
		}

		if state.LoopConfig.ToolLoopMode == session.ToolLoopModeChanceThenBreak && !chanceGiven {
			markChance()
			out := *resp
			out.Message = resp.Message
			out.Message.Text = appendWarning(resp.Message.Text, loopDetectionSteeringText)
			return &out, state
		}

		out := *resp
		out.Message = domain.ChatMessage{Role: domain.RoleAssistant, Text: loopDetectionTerminationText}
		out.FinishReason = domain.FinishStop
		return &out, state
	}

	return resp, state
}

func toolCallSignatures(calls []domain.ToolCall) []string {
	sigs := make([]string, 0, len(calls))
	for _, tc := range calls {
		sigs = append(sigs, signature(tc.Function.Name, tc.Function.Arguments))
	}
	return sigs
}

func appendWarning(text, warning string) string {
	if text == "" {
		return warning
	}
	return text + "\n\n" + warning
}

// WrapStream applies the same signature tracking to the tool calls carried
// by the terminal chunk of a streaming response, since tool calls are only
// fully assembled once the stream completes.
func (d *LoopDetector) WrapStream(ctx context.Context, mwCtx Context, chunks <-chan domain.StreamChunk, state session.State) <-chan domain.StreamChunk {
	if !state.LoopConfig.ToolLoopDetectionEnabled {
		return chunks
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Done && len(chunk.ToolCalls) > 0 {
				resp := &domain.ChatResponse{Message: domain.ChatMessage{ToolCalls: chunk.ToolCalls}}
				replaced, _ := d.Apply(ctx, mwCtx, resp, state)
				if replaced.Message.Text != "" && replaced.FinishReason == domain.FinishStop && len(replaced.Message.ToolCalls) == 0 {
					chunk.ToolCalls = nil
					chunk.DeltaText += appendWarning("", replaced.Message.Text)
					chunk.FinishReason = domain.FinishStop
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
