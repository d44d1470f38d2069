package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_prompts.yaml
var defaultPrompts []byte

// TaskPrompt is the instruction sent next to the image for one extraction task
type TaskPrompt struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts of both vision tasks
type PromptConfig struct {
	Bulletin TaskPrompt `yaml:"bulletin"`
	Manifest TaskPrompt `yaml:"manifest"`
}

// PromptData fills the template placeholders
type PromptData struct {
	DefaultAudience string
	NoiseTokens     []string
}

// DefaultPrompts returns the bundled prompts
func DefaultPrompts() *PromptConfig {
	var prompts PromptConfig
	if err := yaml.Unmarshal(defaultPrompts, &prompts); err != nil {
		panic(fmt.Sprintf("bundled prompts are invalid: %v", err))
	}
	return &prompts
}

// LoadPrompts loads prompt configuration from a YAML file. Tasks missing
// from the file keep the bundled prompt.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if override.Bulletin.UserTemplate != "" {
		prompts.Bulletin = override.Bulletin
	}
	if override.Manifest.UserTemplate != "" {
		prompts.Manifest = override.Manifest
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
