package services

import (
	"testing"
	"time"

	"ragchat-platform/internal/llm"
	"ragchat-platform/models"
)

func TestFormatChatHistory(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := base.Add(30 * time.Second)

	stored := []models.ChatMessage{
		{MessageType: models.MessageTypeAssistant, Content: models.WelcomeMessage, CreatedAt: base},
		{MessageType: models.MessageTypeUser, Content: "hello", CreatedAt: base.Add(10 * time.Second)},
		{MessageType: models.MessageTypeSystem, Content: "internal note", CreatedAt: base.Add(15 * time.Second)},
		{MessageType: models.MessageTypeAssistant, Content: "hi there", CreatedAt: base.Add(20 * time.Second)},
		{MessageType: models.MessageTypeUser, Content: "the question being answered", CreatedAt: cutoff},
	}

	history := FormatChatHistory(stored, cutoff)

	want := []llm.Message{
		{Role: llm.RoleAssistant, Content: models.WelcomeMessage},
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi there"},
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d history messages, got %d", len(want), len(history))
	}
	for i, m := range want {
		if history[i] != m {
			t.Errorf("message %d: expected %+v, got %+v", i, m, history[i])
		}
	}
}

func TestFormatChatHistoryEmpty(t *testing.T) {
	history := FormatChatHistory(nil, time.Now())
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d messages", len(history))
	}
}

func TestFormatChatHistoryExcludesCutoffMessage(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stored := []models.ChatMessage{
		{MessageType: models.MessageTypeUser, Content: "current question", CreatedAt: cutoff},
		{MessageType: models.MessageTypeUser, Content: "later message", CreatedAt: cutoff.Add(time.Second)},
	}

	history := FormatChatHistory(stored, cutoff)
	if len(history) != 0 {
		t.Errorf("expected cutoff and later messages excluded, got %d messages", len(history))
	}
}

func TestTruncateError(t *testing.T) {
	short := errString("boom")
	if got := truncateError(short); got != "boom" {
		t.Errorf("expected unchanged message, got %q", got)
	}

	long := make([]byte, maxErrorMessageLen+100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateError(errString(long))
	if len(got) != maxErrorMessageLen {
		t.Errorf("expected %d chars, got %d", maxErrorMessageLen, len(got))
	}
}

type errString string

func (e errString) Error() string { return string(e) }
