package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/clipforge/clipforge/pkg/chunker"
	"github.com/clipforge/clipforge/pkg/srt"
)

const (
	outlineFile     = "step1_outline.json"
	chunkTextDir    = "step1_chunks"
	chunkCueDir     = "step1_srt_chunks"
	outlineRawDir   = "step1_llm_raw_output"
	maxBulletLength = 200
)

var (
	// "1. **标题**" with the bold markers optional
	outlineTitleRe  = regexp.MustCompile(`^\d+\.\s*(?:\*\*(.+?)\*\*|(.+))\s*$`)
	outlineBulletRe = regexp.MustCompile(`^-\s*(.+)$`)
)

// runStage1 chunks the subtitles, asks for topic outlines per chunk,
// and merges them. Chunks with a cached raw response are not re-sent.
func (p *Pipeline) runStage1(ctx context.Context, id string, meta *ProjectMetadata) error {
	f, err := os.Open(meta.FileInfo.SrtPath)
	if err != nil {
		return fmt.Errorf("open subtitles: %w", err)
	}
	cues, err := srt.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse subtitles: %w", err)
	}

	chunks := chunker.Split(cues, chunker.DefaultTargetSeconds, chunker.DefaultPauseSeconds)
	slog.Info("subtitles chunked", "project", id, "cues", len(cues), "chunks", len(chunks))

	for _, ch := range chunks {
		textPath := p.store.OutputPath(id, fmt.Sprintf("%s/chunk_%d.txt", chunkTextDir, ch.Index))
		if err := writeTextFile(textPath, ch.Text()); err != nil {
			return err
		}
		cuePath := fmt.Sprintf("%s/chunk_%d.json", chunkCueDir, ch.Index)
		if err := p.store.WriteOutput(id, cuePath, ch); err != nil {
			return err
		}
	}

	prompt, err := p.prompts.Load(meta.FileInfo.Category, roleOutline)
	if err != nil {
		return err
	}
	provider, err := p.newProv(p.settings.Get())
	if err != nil {
		return err
	}

	var all []OutlineItem
	seen := map[string]bool{}
	for _, ch := range chunks {
		rawPath := p.store.OutputPath(id, fmt.Sprintf("%s/chunk_%d.txt", outlineRawDir, ch.Index))
		raw, err := os.ReadFile(rawPath)
		if err != nil {
			resp, err := CallWithRetry(ctx, provider, prompt, ch.Text(), p.settings.Get().MaxRetries)
			if err != nil {
				// Other chunks still have topics to offer.
				slog.Warn("outline chunk failed, skipping", "project", id,
					"chunk", ch.Index, "err", err)
				continue
			}
			if err := writeTextFile(rawPath, resp); err != nil {
				return err
			}
			raw = []byte(resp)
		} else {
			slog.Debug("reusing cached outline response", "project", id, "chunk", ch.Index)
		}
		items := parseOutline(string(raw), ch.Index)
		if len(items) == 0 {
			slog.Warn("no outline items in chunk", "project", id, "chunk", ch.Index)
		}
		// First occurrence of a title wins across chunks.
		for _, it := range items {
			if seen[it.Title] {
				continue
			}
			seen[it.Title] = true
			all = append(all, it)
		}
	}
	if all == nil {
		slog.Warn("no outline items extracted", "project", id, "chunks", len(chunks))
		all = []OutlineItem{}
	}
	if err := p.store.WriteOutput(id, outlineFile, all); err != nil {
		return err
	}
	slog.Info("outline extracted", "project", id, "topics", len(all))
	return nil
}

// parseOutline reads the numbered-title / dash-bullet plain text
// format the outline prompt asks for.
func parseOutline(text string, chunkIndex int) []OutlineItem {
	var items []OutlineItem
	var cur *OutlineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := outlineTitleRe.FindStringSubmatch(line); m != nil {
			title := m[1]
			if title == "" {
				title = m[2]
			}
			title = strings.TrimSpace(strings.Trim(title, "*"))
			if title == "" {
				continue
			}
			items = append(items, OutlineItem{Title: title, ChunkIndex: chunkIndex})
			cur = &items[len(items)-1]
			continue
		}
		if m := outlineBulletRe.FindStringSubmatch(line); m != nil && cur != nil {
			bullet := strings.TrimSpace(m[1])
			if bullet == "" || len([]rune(bullet)) > maxBulletLength {
				continue
			}
			cur.Bullets = append(cur.Bullets, bullet)
		}
	}
	return items
}
