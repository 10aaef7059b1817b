package respmw

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/reactor"
	"github.com/llmgateway/proxycore/pkg/session"
)

// PytestFullSuitePriority runs after compression detection so a full-suite
// invocation is both flagged for compression and checked for steering.
const PytestFullSuitePriority = 70

// DefaultFullSuiteTTL bounds how long full-suite invocations are allowed
// through after one was swallowed.
const DefaultFullSuiteTTL = 10 * time.Minute

var nodeSelectorPattern = regexp.MustCompile(`::`)

const pytestFullSuiteWarning = "Running the entire test suite is expensive and was not executed. " +
	"Select specific files or test nodes (e.g. `pytest path/to/test_file.py::test_name`) and retry."

// PytestFullSuiteSteering swallows a full-suite pytest invocation with a
// warning and records the time in session state; any full-suite invocation
// within the TTL after that is passed through unmodified (the command text
// is not compared), and the first one after the TTL is swallowed again
// (spec §4.5).
type PytestFullSuiteSteering struct {
	shellTools map[string]bool
	ttl        time.Duration
	now        func() time.Time
}

func NewPytestFullSuiteSteering(shellTools []string, ttl time.Duration) *PytestFullSuiteSteering {
	if ttl <= 0 {
		ttl = DefaultFullSuiteTTL
	}
	set := make(map[string]bool, len(shellTools))
	for _, name := range shellTools {
		set[name] = true
	}
	return &PytestFullSuiteSteering{shellTools: set, ttl: ttl, now: time.Now}
}

func (s *PytestFullSuiteSteering) Name() string  { return "pytest_full_suite_steering" }
func (s *PytestFullSuiteSteering) Priority() int { return PytestFullSuitePriority }

func (s *PytestFullSuiteSteering) Apply(_ context.Context, _ Context, resp *domain.ChatResponse, state session.State) (*domain.ChatResponse, session.State) {
	for _, tc := range resp.Message.ToolCalls {
		if !s.shellTools[tc.Function.Name] {
			continue
		}
		args := parseToolArguments(tc.Function.Arguments)
		cmd, ok := reactor.ExtractCommandString(args)
		if !ok || !isFullSuiteInvocation(cmd) {
			continue
		}

		now := s.now()
		if state.LastFullSuitePytestAt != nil && now.Sub(*state.LastFullSuitePytestAt) < s.ttl {
			return resp, state
		}

		replacement := *resp
		replacement.Message = domain.ChatMessage{Role: domain.RoleAssistant, Text: pytestFullSuiteWarning}
		replacement.FinishReason = domain.FinishStop
		return &replacement, state.WithLastFullSuitePytestAt(now)
	}
	return resp, state
}

// isFullSuiteInvocation reports whether cmd invokes pytest with no
// file/node/path selector: a bare `pytest`, `py.test`, or
// `python -m pytest` with no further positional argument and no `::` node
// syntax.
func isFullSuiteInvocation(cmd string) bool {
	if !pytestInvocationPattern.MatchString(cmd) {
		return false
	}
	if nodeSelectorPattern.MatchString(cmd) {
		return false
	}

	fields := strings.Fields(cmd)
	sawInvocation := false
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "python" || f == "python3":
			continue
		case f == "-m":
			continue
		case strings.EqualFold(f, "pytest") || strings.EqualFold(f, "py.test"):
			sawInvocation = true
			continue
		}
		if sawInvocation {
			if strings.HasPrefix(f, "-") {
				// flag, possibly with a following value; not a selector
				continue
			}
			// any other positional token after the invocation is a
			// file/path/node selector
			return false
		}
	}
	return sawInvocation
}
