package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/clipforge/clipforge/pkg/chunker"
	"github.com/clipforge/clipforge/pkg/jsonfix"
	"github.com/clipforge/clipforge/pkg/srt"
)

const (
	timelineFile   = "step2_timeline.json"
	timelineRawDir = "step2_llm_raw_output"
	// Extra attempts when a response refuses to parse as JSON.
	timelineParseRetries = 2
)

var timecodeRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3}$`)

// timelineItem is the wire shape the timeline prompt asks for.
type timelineItem struct {
	Outline   string `json:"outline"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// runStage2 anchors each outline topic to exact subtitle times and
// assigns the durable clip ids.
func (p *Pipeline) runStage2(ctx context.Context, id string, meta *ProjectMetadata) error {
	var outline []OutlineItem
	if err := p.store.ReadOutput(id, outlineFile, &outline); err != nil {
		return fmt.Errorf("read outline: %w", err)
	}
	byChunk := map[int][]OutlineItem{}
	var chunkOrder []int
	for _, it := range outline {
		if _, ok := byChunk[it.ChunkIndex]; !ok {
			chunkOrder = append(chunkOrder, it.ChunkIndex)
		}
		byChunk[it.ChunkIndex] = append(byChunk[it.ChunkIndex], it)
	}
	sort.Ints(chunkOrder)

	prompt, err := p.prompts.Load(meta.FileInfo.Category, roleTimeline)
	if err != nil {
		return err
	}
	provider, err := p.newProv(p.settings.Get())
	if err != nil {
		return err
	}

	var clips []Clip
	for _, chunkIdx := range chunkOrder {
		var ch chunker.Chunk
		cuePath := fmt.Sprintf("%s/chunk_%d.json", chunkCueDir, chunkIdx)
		if err := p.store.ReadOutput(id, cuePath, &ch); err != nil {
			return fmt.Errorf("read chunk %d cues: %w", chunkIdx, err)
		}
		items, err := p.anchorChunk(ctx, id, provider, prompt, ch, byChunk[chunkIdx])
		if err != nil {
			// A dead chunk does not take the others down with it.
			slog.Warn("timeline chunk failed, skipping", "project", id,
				"chunk", chunkIdx, "err", err)
			continue
		}
		for _, it := range items {
			c, ok := validateTimelineItem(it, ch)
			if !ok {
				slog.Warn("dropping invalid timeline item", "project", id,
					"chunk", chunkIdx, "outline", it.Outline,
					"start", it.StartTime, "end", it.EndTime)
				continue
			}
			c.ChunkIndex = chunkIdx
			c.Content = srt.TextInRange(ch.Cues, mustSeconds(c.StartTime), mustSeconds(c.EndTime))
			clips = append(clips, c)
		}
	}
	if len(clips) == 0 {
		slog.Warn("no timeline entries anchored", "project", id)
		return p.store.WriteOutput(id, timelineFile, []Clip{})
	}

	// Durable ids follow playback order and never change after this.
	sort.SliceStable(clips, func(i, j int) bool {
		return mustSeconds(clips[i].StartTime) < mustSeconds(clips[j].StartTime)
	})
	for i := range clips {
		clips[i].ID = strconv.Itoa(i + 1)
	}
	if err := p.store.WriteOutput(id, timelineFile, clips); err != nil {
		return err
	}
	slog.Info("timeline anchored", "project", id, "clips", len(clips))
	return nil
}

// anchorChunk sends one chunk and its topic titles, retrying with an
// escalating format reminder when the response cannot be parsed.
// Raw responses are cached per chunk and reused on resume.
func (p *Pipeline) anchorChunk(ctx context.Context, id string, provider Provider,
	prompt string, ch chunker.Chunk, items []OutlineItem) ([]timelineItem, error) {

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	input := map[string]any{
		"subtitles": ch.Text(),
		"topics":    titles,
	}

	rawPath := p.store.OutputPath(id, fmt.Sprintf("%s/chunk_%d.txt", timelineRawDir, ch.Index))
	if cached, err := os.ReadFile(rawPath); err == nil {
		var parsed []timelineItem
		if err := jsonfix.ParseInto(string(cached), &parsed); err == nil {
			slog.Debug("reusing cached timeline response", "project", id, "chunk", ch.Index)
			return parsed, nil
		}
	}

	maxRetries := p.settings.Get().MaxRetries
	curPrompt := prompt
	var lastErr error
	for attempt := 0; attempt <= timelineParseRetries; attempt++ {
		resp, err := CallWithRetry(ctx, provider, curPrompt, input, maxRetries)
		if err != nil {
			return nil, err
		}
		path := rawPath
		if attempt > 0 {
			path = p.store.OutputPath(id, fmt.Sprintf("%s/chunk_%d_attempt_%d.txt", timelineRawDir, ch.Index, attempt))
		}
		if err := writeTextFile(path, resp); err != nil {
			return nil, err
		}
		var parsed []timelineItem
		parseErr := jsonfix.ParseInto(resp, &parsed)
		if parseErr == nil {
			if attempt > 0 {
				// Keep the parseable response as the cached one.
				if err := writeTextFile(rawPath, resp); err != nil {
					return nil, err
				}
			}
			return parsed, nil
		}
		lastErr = parseErr
		slog.Warn("timeline response not parseable", "project", id,
			"chunk", ch.Index, "attempt", attempt+1, "err", parseErr)
		curPrompt = prompt + "\n\n注意：上一次的输出无法解析。请严格只输出JSON数组，不要包含任何解释、Markdown标记或多余文本。"
	}
	return nil, fmt.Errorf("unparseable after %d attempts: %w", timelineParseRetries+1, lastErr)
}

// validateTimelineItem checks the timecode format and clamps the
// range into the chunk bounds.
func validateTimelineItem(it timelineItem, ch chunker.Chunk) (Clip, bool) {
	if it.Outline == "" || !timecodeRe.MatchString(it.StartTime) || !timecodeRe.MatchString(it.EndTime) {
		return Clip{}, false
	}
	start, err := srt.ToSeconds(it.StartTime)
	if err != nil {
		return Clip{}, false
	}
	end, err := srt.ToSeconds(it.EndTime)
	if err != nil {
		return Clip{}, false
	}
	if start < ch.Start() {
		start = ch.Start()
	}
	if end > ch.End() {
		end = ch.End()
	}
	if end <= start {
		return Clip{}, false
	}
	return Clip{
		Outline:   it.Outline,
		StartTime: srt.FromSeconds(start),
		EndTime:   srt.FromSeconds(end),
	}, true
}

// mustSeconds converts a timecode that has already been validated.
func mustSeconds(tc string) float64 {
	s, err := srt.ToSeconds(tc)
	if err != nil {
		return 0
	}
	return s
}
