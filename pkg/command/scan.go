package command

import "github.com/llmgateway/proxycore/pkg/domain"

// ScanResult is the outcome of scanning a full message list for the single
// command to execute this turn.
type ScanResult struct {
	Found        bool
	Command      Command
	MessageIndex int
	PartIndex    int // -1 when the message used Text rather than Parts
}

// ScanMessages finds the command to execute this turn: the last message is
// scanned first, and within a message each part is examined in order;
// the first command found anywhere stops the scan (spec §4.1).
func ScanMessages(parser *Parser, messages []domain.ChatMessage) ScanResult {
	for mi := len(messages) - 1; mi >= 0; mi-- {
		msg := messages[mi]
		if msg.HasParts() {
			for pi, part := range msg.Parts {
				tp, ok := part.(domain.TextPart)
				if !ok {
					continue
				}
				outcome := parser.ExtractFirst(tp.Text)
				if outcome.Found {
					return ScanResult{Found: true, Command: outcome.Command, MessageIndex: mi, PartIndex: pi}
				}
			}
			continue
		}
		outcome := parser.ExtractFirst(msg.Text)
		if outcome.Found {
			return ScanResult{Found: true, Command: outcome.Command, MessageIndex: mi, PartIndex: -1}
		}
	}
	return ScanResult{}
}

// ApplyResidual rewrites the message at MessageIndex (and PartIndex if >=0)
// to its residual text after the matched command span was removed.
func ApplyResidual(messages []domain.ChatMessage, result ScanResult, residual string) []domain.ChatMessage {
	if !result.Found {
		return messages
	}
	out := make([]domain.ChatMessage, len(messages))
	copy(out, messages)
	msg := out[result.MessageIndex]
	if result.PartIndex >= 0 {
		parts := make([]domain.ContentPart, len(msg.Parts))
		copy(parts, msg.Parts)
		parts[result.PartIndex] = domain.TextPart{Text: residual}
		msg.Parts = parts
	} else {
		msg.Text = residual
	}
	out[result.MessageIndex] = msg
	return out
}
