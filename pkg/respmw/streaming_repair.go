package respmw

import (
	"context"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/jsonrepair"
	"github.com/llmgateway/proxycore/pkg/session"
)

// StreamingRepairPriority runs late: it only touches a chunk's raw text,
// after the reactor, dangerous-command and pytest middlewares and before
// loop detection (LoopDetectionPriority is lower).
const StreamingRepairPriority = 30

// StreamingJSONRepair wraps a streaming response's delta text through a
// jsonrepair.Processor when enabled for the session (spec §4.5, §4.8). It
// has no unary Apply effect; it only implements StreamWrapper.
type StreamingJSONRepair struct {
	softCap int
	onOverflow jsonrepair.Logger
}

func NewStreamingJSONRepair(softCap int, onOverflow jsonrepair.Logger) *StreamingJSONRepair {
	return &StreamingJSONRepair{softCap: softCap, onOverflow: onOverflow}
}

func (r *StreamingJSONRepair) Name() string  { return "streaming_json_repair" }
func (r *StreamingJSONRepair) Priority() int { return StreamingRepairPriority }

// Apply is a no-op: this middleware only affects streaming chunk sequences.
func (r *StreamingJSONRepair) Apply(_ context.Context, _ Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	return resp, state
}

func (r *StreamingJSONRepair) WrapStream(ctx context.Context, _ Context, chunks <-chan domain.StreamChunk, state session.State) <-chan domain.StreamChunk {
	if !state.StreamRepairEnabled {
		return chunks
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		proc := jsonrepair.NewProcessor(r.softCap, r.onOverflow)
		for chunk := range chunks {
			if chunk.DeltaText != "" {
				chunk.DeltaText = proc.Feed(chunk.DeltaText)
			}
			if chunk.Done {
				tail := proc.Close()
				if tail != "" {
					chunk.DeltaText += tail
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
