package cli

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	if got := buildPrompt(nil, "hi"); got != "hi" {
		t.Errorf("first prompt = %q, want bare input", got)
	}

	history := []chatEntry{
		{role: "user", content: "what's a duck"},
		{role: "assistant", content: "a bird"},
		{role: "error", content: "timeout"},
	}
	got := buildPrompt(history, "and a goose?")
	want := "Conversation so far:\nUser: what's a duck\nAssistant: a bird\n\nUser: and a goose?"
	if got != want {
		t.Errorf("buildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildPromptKeepsRecentTurns(t *testing.T) {
	var history []chatEntry
	for i := 0; i < contextTurns+5; i++ {
		history = append(history, chatEntry{role: "user", content: string(rune('a' + i))})
	}
	got := buildPrompt(history, "z")
	if strings.Contains(got, "User: a\n") {
		t.Error("oldest turn should have been dropped")
	}
	if n := strings.Count(got, "User: "); n != contextTurns+1 {
		t.Errorf("user lines = %d, want %d", n, contextTurns+1)
	}
}

func TestIsExitCmd(t *testing.T) {
	for _, s := range []string{"exit", "QUIT", "/exit", ":q"} {
		if !isExitCmd(s) {
			t.Errorf("isExitCmd(%q) = false", s)
		}
	}
	if isExitCmd("exit please") {
		t.Error("isExitCmd matched a sentence")
	}
}
