package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipforge/clipforge/pkg/jsonfix"
)

const (
	titlesFile   = "step4_titles.json"
	titlesRawDir = "step4_llm_raw_output"
)

// runStage4 generates presentation titles for the high-score clips.
// Clips are never dropped here; an unmatched id keeps its outline as
// the title.
func (p *Pipeline) runStage4(ctx context.Context, id string, meta *ProjectMetadata) error {
	var high []Clip
	if err := p.store.ReadOutput(id, highScoreFile, &high); err != nil {
		return fmt.Errorf("read high score clips: %w", err)
	}
	if len(high) == 0 {
		slog.Info("no high score clips, skipping title generation", "project", id)
		return p.store.WriteOutput(id, titlesFile, []Clip{})
	}

	prompt, err := p.prompts.Load(meta.FileInfo.Category, roleTitle)
	if err != nil {
		return err
	}
	provider, err := p.newProv(p.settings.Get())
	if err != nil {
		return err
	}

	input := make([]map[string]string, len(high))
	for i, c := range high {
		input[i] = map[string]string{
			"id":               c.ID,
			"title":            c.Outline,
			"content":          c.Content,
			"recommend_reason": c.RecommendReason,
		}
	}
	resp, err := CallWithRetry(ctx, provider, prompt, input, p.settings.Get().MaxRetries)
	if err != nil {
		return err
	}
	rawPath := p.store.OutputPath(id, titlesRawDir+"/output.txt")
	if err := writeTextFile(rawPath, resp); err != nil {
		return err
	}

	titles := parseTitleResponse(resp)
	matched := 0
	for i := range high {
		if t, ok := titles[high[i].ID]; ok && t != "" {
			high[i].GeneratedTitle = t
			matched++
		} else {
			// The fallback is persisted, so the artifact carries a title
			// for every clip on its own.
			high[i].GeneratedTitle = high[i].Outline
		}
	}
	if matched < len(high) {
		slog.Warn("some clips keep their outline as title", "project", id,
			"matched", matched, "total", len(high))
	}
	if err := p.store.WriteOutput(id, titlesFile, high); err != nil {
		return err
	}
	slog.Info("titles generated", "project", id, "clips", len(high), "fromModel", matched)
	return nil
}

// parseTitleResponse accepts either the requested id->title object or
// a list of {id, title} pairs. Anything else yields an empty map and
// the outlines stay in place.
func parseTitleResponse(resp string) map[string]string {
	out := map[string]string{}
	v, err := jsonfix.Parse(resp)
	if err != nil {
		return out
	}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
	case []any:
		for _, el := range t {
			m, ok := el.(map[string]any)
			if !ok {
				continue
			}
			id, _ := m["id"].(string)
			title, _ := m["title"].(string)
			if id != "" && title != "" {
				out[id] = title
			}
		}
	}
	return out
}
