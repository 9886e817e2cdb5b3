package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed system.txt
var DefaultSystemPrompt string

//go:embed direct.txt
var DirectPrompt string

// LoadSystemPrompt reads an override template from path, falling back to the
// embedded default when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt %s: %w", path, err)
	}
	tmpl := strings.TrimSpace(string(data))
	if tmpl == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return tmpl, nil
}
