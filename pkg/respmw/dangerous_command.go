package respmw

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/jsonrepair"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/session"
)

// DangerousCommandPriority runs after the tool-call reactor: a reactor
// handler may already have swallowed the call entirely, in which case
// there is nothing left to block.
const DangerousCommandPriority = 90

// DangerousCommandRule is one ordered regex test against an extracted
// shell command string.
type DangerousCommandRule struct {
	Name    string
	Pattern *regexp.Regexp
}

var defaultDangerousCommandRules = []DangerousCommandRule{
	{Name: "git-reset-hard", Pattern: regexp.MustCompile(`(?i)git\s+reset\s+--hard`)},
	{Name: "rm-rf", Pattern: regexp.MustCompile(`(?i)rm\s+-[a-z]*r[a-z]*f[a-z]*\s`)},
	{Name: "dd-to-device", Pattern: regexp.MustCompile(`(?i)\bdd\s+if=.*of=/dev/`)},
	{Name: "fork-bomb", Pattern: regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\};`)},
	{Name: "curl-pipe-shell", Pattern: regexp.MustCompile(`(?i)(curl|wget)\s+.*\|\s*(sh|bash)\b`)},
}

// DefaultDangerousCommandRules returns the built-in ordered rule set.
func DefaultDangerousCommandRules() []DangerousCommandRule {
	out := make([]DangerousCommandRule, len(defaultDangerousCommandRules))
	copy(out, defaultDangerousCommandRules)
	return out
}

const dangerousCommandSteeringText = "The command you issued matched a security enforcement module rule and was blocked. " +
	"Do not retry the same command."

// DangerousCommandEnforcer replaces the assistant message with a steering
// reply when a shell-tool call's command matches a configured rule
// (spec §4.5), preserving any other tool calls in the same message.
type DangerousCommandEnforcer struct {
	shellTools map[string]bool
	rules      []DangerousCommandRule
}

// NewDangerousCommandEnforcer builds an enforcer. shellTools names the
// tool-call function names whose "command"-like argument should be
// checked (e.g. "execute_command", "run_shell_command").
func NewDangerousCommandEnforcer(shellTools []string, rules []DangerousCommandRule) *DangerousCommandEnforcer {
	set := make(map[string]bool, len(shellTools))
	for _, name := range shellTools {
		set[name] = true
	}
	return &DangerousCommandEnforcer{shellTools: set, rules: rules}
}

func (e *DangerousCommandEnforcer) Name() string  { return "dangerous_command_enforcer" }
func (e *DangerousCommandEnforcer) Priority() int { return DangerousCommandPriority }

func (e *DangerousCommandEnforcer) Apply(_ context.Context, _ Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	if len(resp.Message.ToolCalls) == 0 {
		return resp, state
	}

	blocked := false
	kept := make([]domain.ToolCall, 0, len(resp.Message.ToolCalls))
	for _, tc := range resp.Message.ToolCalls {
		if !e.shellTools[tc.Function.Name] {
			kept = append(kept, tc)
			continue
		}
		args := parseToolArguments(tc.Function.Arguments)
		cmd, ok := reactor.ExtractCommandString(args)
		if !ok || !e.matchesRule(cmd) {
			kept = append(kept, tc)
			continue
		}
		blocked = true
		// Drop this tool call; it is not forwarded to the caller.
	}

	if !blocked {
		return resp, state
	}

	out := *resp
	out.Message = resp.Message
	out.Message.ToolCalls = kept
	out.Message.Text = dangerousCommandSteeringText
	if len(kept) > 0 {
		out.FinishReason = domain.FinishToolCalls
	} else {
		out.FinishReason = domain.FinishStop
	}
	return &out, state
}

func (e *DangerousCommandEnforcer) matchesRule(cmd string) bool {
	for _, r := range e.rules {
		if r.Pattern.MatchString(cmd) {
			return true
		}
	}
	return false
}

// parseToolArguments mirrors reactor.DetectToolCalls's own argument
// parsing (JSON repair fallback) since that helper is unexported.
func parseToolArguments(raw string) map[string]interface{} {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}
	if repaired, ok := jsonrepair.Repair(raw); ok {
		if err := json.Unmarshal([]byte(repaired), &args); err == nil {
			return args
		}
	}
	return nil
}
