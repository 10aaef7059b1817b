package command

import (
	"testing"

	"github.com/llmgateway/proxycore/pkg/domain"
)

func TestScanMessages_LastMessageFirst(t *testing.T) {
	t.Parallel()

	p := NewParser("")
	messages := []domain.ChatMessage{
		{Role: domain.RoleUser, Text: "!/hello"},
		{Role: domain.RoleAssistant, Text: "sure"},
		{Role: domain.RoleUser, Text: "!/pwd plain text"},
	}
	result := ScanMessages(p, messages)
	if !result.Found {
		t.Fatal("expected a command found")
	}
	if result.Command.Name != "pwd" {
		t.Fatalf("expected pwd (last message scanned first), got %s", result.Command.Name)
	}
	if result.MessageIndex != 2 {
		t.Fatalf("expected message index 2, got %d", result.MessageIndex)
	}
}

func TestScanMessages_NoCommand(t *testing.T) {
	t.Parallel()

	p := NewParser("")
	messages := []domain.ChatMessage{
		{Role: domain.RoleUser, Text: "hi there"},
	}
	result := ScanMessages(p, messages)
	if result.Found {
		t.Fatal("expected no command found")
	}
}

func TestApplyResidual_RewritesText(t *testing.T) {
	t.Parallel()

	p := NewParser("")
	messages := []domain.ChatMessage{
		{Role: domain.RoleUser, Text: "!/set(model=openrouter:gpt-4) hi"},
	}
	result := ScanMessages(p, messages)
	if !result.Found {
		t.Fatal("expected command found")
	}
	residual := p.ExtractFirst(messages[result.MessageIndex].Text).Residual
	updated := ApplyResidual(messages, result, residual)
	if updated[0].Text != " hi" {
		t.Fatalf("expected residual ' hi', got %q", updated[0].Text)
	}
}
