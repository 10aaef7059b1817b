package reactor

import "github.com/llmgateway/proxycore/pkg/domain"

// ApplyDiffHandler steers callers away from an "apply_diff" tool call
// toward "patch_file", which the original system preferred for its
// automated QA checks. Grounded on
// original_source/.../tool_call_handlers/apply_diff_handler.py, carried
// forward as a supplemented feature since the distilled spec's tool-call
// reactor section only describes the framework, not its built-in
// handlers.
type ApplyDiffHandler struct {
	message string
}

// NewApplyDiffHandler returns a handler rate-limited to once per session
// per window, matching the original's calls_per_window=1 default.
func NewApplyDiffHandler() *ApplyDiffHandler {
	return &ApplyDiffHandler{
		message: "You tried to use apply_diff tool. Please prefer to use patch_file tool instead, " +
			"as it is superior to apply_diff and provides automated QA checks.",
	}
}

func (h *ApplyDiffHandler) Name() string  { return "apply_diff_steering_handler" }
func (h *ApplyDiffHandler) Priority() int { return 100 }

func (h *ApplyDiffHandler) RateLimit() RateLimit {
	return RateLimit{CallsPerWindow: 1, WindowSeconds: 60}
}

func (h *ApplyDiffHandler) CanHandle(ctx Context) bool {
	return ctx.ToolName == "apply_diff"
}

func (h *ApplyDiffHandler) Handle(ctx Context) Result {
	replacement := *ctx.FullResponse
	replacement.Message = domain.ChatMessage{Role: domain.RoleAssistant, Text: h.message}
	replacement.FinishReason = domain.FinishStop

	return Result{
		ShouldSwallow:       true,
		ReplacementResponse: &replacement,
		Metadata: map[string]interface{}{
			"steering_type":    "tool_preference",
			"original_tool":    ctx.ToolName,
			"recommended_tool": "patch_file",
		},
	}
}
