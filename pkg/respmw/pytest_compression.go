package respmw

import (
	"context"
	"regexp"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/session"
)

// PytestCompressionPriority runs just after dangerous-command enforcement:
// a blocked command never reaches pytest detection.
const PytestCompressionPriority = 80

var pytestInvocationPattern = regexp.MustCompile(`(?i)\b(py\.test|pytest)\b`)

// PytestCompressionDetector marks the session so the next tool-call reply
// delivered back to the agent is compressed (spec §4.5). It never swallows
// the call; it only flips session state for a later stage to read.
type PytestCompressionDetector struct {
	shellTools map[string]bool
}

func NewPytestCompressionDetector(shellTools []string) *PytestCompressionDetector {
	set := make(map[string]bool, len(shellTools))
	for _, name := range shellTools {
		set[name] = true
	}
	return &PytestCompressionDetector{shellTools: set}
}

func (d *PytestCompressionDetector) Name() string  { return "pytest_compression_detector" }
func (d *PytestCompressionDetector) Priority() int { return PytestCompressionPriority }

func (d *PytestCompressionDetector) Apply(_ context.Context, _ Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	for _, tc := range resp.Message.ToolCalls {
		if !d.shellTools[tc.Function.Name] {
			continue
		}
		args := parseToolArguments(tc.Function.Arguments)
		cmd, ok := reactor.ExtractCommandString(args)
		if ok && pytestInvocationPattern.MatchString(cmd) {
			return resp, state.WithCompressNextToolCallReply(true)
		}
	}
	return resp, state
}
