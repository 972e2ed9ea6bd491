package app

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// Prompt roles, one per LLM-driven stage.
const (
	roleOutline        = "outline"
	roleTimeline       = "timeline"
	roleRecommendation = "recommendation"
	roleTitle          = "title"
	roleClustering     = "clustering"
)

//go:embed prompts/default/*.txt
var defaultPrompts embed.FS

// PromptLoader resolves prompt text for a role and category. Files in
// promptDir/<category>/<role>.txt override promptDir/default/<role>.txt,
// which in turn overrides the embedded defaults.
type PromptLoader struct {
	dir string
}

func NewPromptLoader(dir string) *PromptLoader {
	return &PromptLoader{dir: dir}
}

// Load returns the prompt for role in the given category.
func (p *PromptLoader) Load(category, role string) (string, error) {
	if category == "" {
		category = "default"
	}
	paths := []string{
		filepath.Join(p.dir, category, role+".txt"),
		filepath.Join(p.dir, "default", role+".txt"),
	}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err == nil {
			return string(raw), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", path, err)
		}
	}
	raw, err := defaultPrompts.ReadFile("prompts/default/" + role + ".txt")
	if err != nil {
		return "", fmt.Errorf("no prompt for role %q in category %q", role, category)
	}
	return string(raw), nil
}
