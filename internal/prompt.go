package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// windowPromptData is injected into the segmentation prompt template.
type windowPromptData struct {
	Window        string
	PreviousTopic string
}

// PromptManager loads and renders the segmentation prompt template. The
// template may come from the config directory default, a custom file, or
// an inline string.
type PromptManager struct {
	promptFile   string
	promptString string
	configDir    string

	tmpl *template.Template
}

// NewPromptManager creates a prompt manager. promptSetting may be empty
// (use the default template from the config directory), a file path, or an
// inline template string.
func NewPromptManager(configDir, promptSetting string) *PromptManager {
	pm := &PromptManager{configDir: configDir}

	if promptSetting != "" {
		if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
			pm.promptFile = promptSetting
		} else {
			pm.promptString = promptSetting
		}
	}

	return pm
}

// WindowPrompt renders the segmentation prompt for one scan window,
// carrying the previously accepted topic for continuity context.
func (pm *PromptManager) WindowPrompt(window, previousTopic string) (string, error) {
	tmpl, err := pm.template()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := windowPromptData{Window: window, PreviousTopic: previousTopic}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return buf.String(), nil
}

func (pm *PromptManager) template() (*template.Template, error) {
	if pm.tmpl != nil {
		return pm.tmpl, nil
	}

	var content string
	if pm.promptString != "" {
		content = pm.promptString
	} else {
		promptFile := pm.promptFile
		if promptFile == "" {
			promptFile = filepath.Join(pm.configDir, "segment_prompt.txt")
		}
		raw, err := os.ReadFile(promptFile)
		if err != nil {
			return nil, fmt.Errorf("reading prompt template: %w", err)
		}
		content = string(raw)
	}

	tmpl, err := template.New("segment").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	pm.tmpl = tmpl
	return tmpl, nil
}

// IsLikelyFilePath uses heuristics to decide whether a string is a file
// path rather than an inline template.
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".template") || strings.Contains(s, ".tmpl") {
		return true
	}

	// Long strings are almost certainly inline templates
	if len(s) > 200 {
		return false
	}

	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
