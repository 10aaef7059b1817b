package reactor

import (
	"encoding/json"

	"github.com/llmgateway/proxycore/pkg/domain"
	"github.com/llmgateway/proxycore/pkg/jsonrepair"
)

// DetectToolCalls extracts ToolCall{name, parsed arguments} from a
// response's message.tool_calls (spec §4.7 Detection). Arguments are
// parsed with the JSON repair primitive; an unparseable string is passed
// through with a nil Arguments map so callers can still inspect ToolName.
func DetectToolCalls(resp *domain.ChatResponse) []ToolCall {
	if resp == nil || len(resp.Message.ToolCalls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(resp.Message.ToolCalls))
	for _, tc := range resp.Message.ToolCalls {
		out = append(out, ToolCall{Name: tc.Function.Name, Arguments: parseArguments(tc.Function.Arguments)})
	}
	return out
}

func parseArguments(raw string) map[string]interface{} {
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

// ExtractCommandString pulls a shell command string out of parsed tool
// arguments, accepting the field names the spec names for dangerous
// command detection: command, cmd, input.command, or the first element of
// args[] (spec §4.5).
func ExtractCommandString(args map[string]interface{}) (string, bool) {
	if args == nil {
		return "", false
	}
	if v, ok := args["command"].(string); ok {
		return v, true
	}
	if v, ok := args["cmd"].(string); ok {
		return v, true
	}
	if input, ok := args["input"].(map[string]interface{}); ok {
		if v, ok := input["command"].(string); ok {
			return v, true
		}
	}
	if list, ok := args["args"].([]interface{}); ok && len(list) > 0 {
		if v, ok := list[0].(string); ok {
			return v, true
		}
	}
	return "", false
}
