package reactor

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/llmgateway/proxycore/pkg/domain"
)

// SteeringRule is one operator-configured steering trigger: either an
// exact tool-name match, or a case-insensitive substring match against the
// tool name or its serialized arguments.
type SteeringRule struct {
	Name            string
	Enabled         bool
	Message         string
	Priority        int
	CallsPerWindow  int
	WindowSeconds   int
	TriggerToolNames []string
	TriggerPhrases   []string
}

// ConfigSteeringHandler is a generic, operator-configured steering
// handler: one Reactor Handler fronting an arbitrary set of rules,
// evaluated highest-priority first. Grounded on
// original_source/.../tool_call_handlers/config_steering_handler.py,
// carried forward as a supplemented feature (see ApplyDiffHandler).
type ConfigSteeringHandler struct {
	rules []SteeringRule
}

// NewConfigSteeringHandler compiles rules, dropping any with an empty
// Message (the original silently skips invalid rules rather than failing
// startup), sorted by descending priority.
func NewConfigSteeringHandler(rules []SteeringRule) *ConfigSteeringHandler {
	compiled := make([]SteeringRule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Message) == "" {
			continue
		}
		if r.CallsPerWindow <= 0 {
			r.CallsPerWindow = 1
		}
		if r.WindowSeconds <= 0 {
			r.WindowSeconds = 60
		}
		compiled = append(compiled, r)
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority > compiled[j].Priority })
	return &ConfigSteeringHandler{rules: compiled}
}

func (h *ConfigSteeringHandler) Name() string  { return "config_steering_handler" }
func (h *ConfigSteeringHandler) Priority() int { return 50 }

// RateLimit reports unlimited at the handler level. Rules carry their own
// CallsPerWindow/WindowSeconds (defaulted by NewConfigSteeringHandler), but
// matchingRule does not check them: an enabled matching rule fires on every
// call.
func (h *ConfigSteeringHandler) RateLimit() RateLimit { return RateLimit{} }

func (h *ConfigSteeringHandler) CanHandle(ctx Context) bool {
	return h.matchingRule(ctx) != nil
}

func (h *ConfigSteeringHandler) Handle(ctx Context) Result {
	rule := h.matchingRule(ctx)
	if rule == nil {
		return Result{}
	}
	replacement := *ctx.FullResponse
	replacement.Message = domain.ChatMessage{Role: domain.RoleAssistant, Text: rule.Message}
	replacement.FinishReason = domain.FinishStop

	return Result{
		ShouldSwallow:       true,
		ReplacementResponse: &replacement,
		Metadata: map[string]interface{}{
			"steering_type": "config_rule",
			"rule_name":     rule.Name,
		},
	}
}

func (h *ConfigSteeringHandler) matchingRule(ctx Context) *SteeringRule {
	argsJSON, _ := json.Marshal(ctx.ToolArguments)
	haystack := strings.ToLower(ctx.ToolName + " " + string(argsJSON))

	for i := range h.rules {
		r := &h.rules[i]
		if !r.Enabled {
			continue
		}
		matched := false
		for _, name := range r.TriggerToolNames {
			if name == ctx.ToolName {
				matched = true
				break
			}
		}
		if !matched {
			for _, phrase := range r.TriggerPhrases {
				if phrase != "" && strings.Contains(haystack, strings.ToLower(phrase)) {
					matched = true
					break
				}
			}
		}
		if matched {
			return r
		}
	}
	return nil
}
