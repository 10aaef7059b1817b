// Package command implements the in-band directive language: parsing
// "!/name(args)" occurrences out of chat message content, and dispatching
// them to registered handlers that compute a new session state.
package command

import "github.com/llmgateway/proxycore/pkg/session"

// Command is a parsed directive with its keyword arguments. A bare key
// (e.g. "flag" in "!/set(flag)") maps to an empty string, meaning "unset"
// or "flag present".
type Command struct {
	Name string
	Args map[string]string
}

// Arg returns the value for key and whether it was present at all.
func (c Command) Arg(key string) (string, bool) {
	v, ok := c.Args[key]
	return v, ok
}

// Result is what a handler returns after acting on a Command.
type Result struct {
	Success bool
	Message string
	State   session.State
	Data    map[string]interface{}
}

// Handler is a pure function from (command args, current state) to a
// Result carrying the possibly-updated state. Handlers perform no I/O.
type Handler func(cmd Command, state session.State) Result

// ParseOutcome is what ExtractFirst returns for a single scanned message.
type ParseOutcome struct {
	Command Command
	Found   bool
	// Residual is the message text with the matched command span removed.
	Residual string
}
