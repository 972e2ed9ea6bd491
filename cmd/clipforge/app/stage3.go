package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/clipforge/clipforge/pkg/jsonfix"
)

const (
	allScoredFile = "step3_all_scored.json"
	highScoreFile = "step3_high_score_clips.json"

	failReasonBatch = "批量评估失败"
	failReasonItem  = "评估失败"
)

type scoreItem struct {
	ID     string   `json:"id"`
	Score  *float64 `json:"score"`
	Reason string   `json:"reason"`
}

// runStage3 scores clips in per-chunk batches. Responses align with
// the request by position; a batch whose length does not match poisons
// the whole chunk with zero scores rather than guessing an alignment.
func (p *Pipeline) runStage3(ctx context.Context, id string, meta *ProjectMetadata) error {
	var clips []Clip
	if err := p.store.ReadOutput(id, timelineFile, &clips); err != nil {
		return fmt.Errorf("read timeline: %w", err)
	}

	prompt, err := p.prompts.Load(meta.FileInfo.Category, roleRecommendation)
	if err != nil {
		return err
	}
	provider, err := p.newProv(p.settings.Get())
	if err != nil {
		return err
	}

	byChunk := map[int][]*Clip{}
	var chunkOrder []int
	for i := range clips {
		idx := clips[i].ChunkIndex
		if _, ok := byChunk[idx]; !ok {
			chunkOrder = append(chunkOrder, idx)
		}
		byChunk[idx] = append(byChunk[idx], &clips[i])
	}
	sort.Ints(chunkOrder)

	for _, chunkIdx := range chunkOrder {
		batch := byChunk[chunkIdx]
		input := make([]map[string]string, len(batch))
		for i, c := range batch {
			input[i] = map[string]string{
				"id":      c.ID,
				"outline": c.Outline,
				"content": c.Content,
			}
		}
		resp, err := CallWithRetry(ctx, provider, prompt, input, p.settings.Get().MaxRetries)
		var scores []scoreItem
		if err == nil {
			err = jsonfix.ParseInto(resp, &scores)
		}
		if err != nil || len(scores) != len(batch) {
			if err != nil {
				slog.Warn("scoring batch failed", "project", id, "chunk", chunkIdx, "err", err)
			} else {
				slog.Warn("scoring batch length mismatch", "project", id,
					"chunk", chunkIdx, "want", len(batch), "got", len(scores))
			}
			for _, c := range batch {
				c.FinalScore = 0
				c.RecommendReason = failReasonBatch
			}
			continue
		}
		for i, c := range batch {
			if scores[i].Score == nil || scores[i].Reason == "" {
				c.FinalScore = 0
				c.RecommendReason = failReasonItem
				continue
			}
			c.FinalScore = clampScore(*scores[i].Score)
			c.RecommendReason = scores[i].Reason
		}
	}

	// Presentation order: score descending, id ascending on ties.
	scored := make([]Clip, len(clips))
	copy(scored, clips)
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return clipIDLess(scored[i].ID, scored[j].ID)
	})
	if err := p.store.WriteOutput(id, allScoredFile, scored); err != nil {
		return err
	}

	threshold := p.settings.Get().MinScoreThreshold
	var high []Clip
	for _, c := range clips {
		if c.FinalScore >= threshold {
			high = append(high, c)
		}
	}
	sort.SliceStable(high, func(i, j int) bool { return clipIDLess(high[i].ID, high[j].ID) })
	if high == nil {
		high = []Clip{}
	}
	if err := p.store.WriteOutput(id, highScoreFile, high); err != nil {
		return err
	}
	slog.Info("clips scored", "project", id, "total", len(clips),
		"aboveThreshold", len(high), "threshold", threshold)
	return nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// clipIDLess orders the numeric string ids ("2" before "10").
func clipIDLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}
