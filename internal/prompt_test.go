package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWindowPromptInlineTemplate(t *testing.T) {
	pm := NewPromptManager(t.TempDir(), "window={{.Window}} prev={{.PreviousTopic}}")
	prompt, err := pm.WindowPrompt("some text", "Earlier topic")
	if err != nil {
		t.Fatalf("WindowPrompt: %v", err)
	}
	if prompt != "window=some text prev=Earlier topic" {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestWindowPromptFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.txt")
	if err := os.WriteFile(path, []byte("FILE:{{.Window}}"), 0644); err != nil {
		t.Fatalf("writing template: %v", err)
	}

	pm := NewPromptManager(dir, path)
	prompt, err := pm.WindowPrompt("abc", "")
	if err != nil {
		t.Fatalf("WindowPrompt: %v", err)
	}
	if prompt != "FILE:abc" {
		t.Errorf("prompt = %q, want FILE:abc", prompt)
	}
}

func TestWindowPromptDefaultsToConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureDefaultPrompt(dir); err != nil {
		t.Fatalf("EnsureDefaultPrompt: %v", err)
	}

	pm := NewPromptManager(dir, "")
	prompt, err := pm.WindowPrompt("the window text", "The previous topic")
	if err != nil {
		t.Fatalf("WindowPrompt: %v", err)
	}
	if !strings.Contains(prompt, "the window text") {
		t.Error("default template did not include the window text")
	}
	if !strings.Contains(prompt, "The previous topic") {
		t.Error("default template did not include the previous topic")
	}
}

func TestIsLikelyFilePath(t *testing.T) {
	cases := map[string]bool{
		"prompts/window.txt":       true,
		"window.txt":               true,
		"C:\\prompts\\window.tmpl": true,
		"analyze {{.Window}} now":  false,
		strings.Repeat("x", 250):   false,
	}
	for in, want := range cases {
		if got := IsLikelyFilePath(in); got != want {
			t.Errorf("IsLikelyFilePath(%q) = %t, want %t", in, got, want)
		}
	}
}
