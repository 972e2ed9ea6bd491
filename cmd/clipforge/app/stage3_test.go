package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTimeline(t *testing.T, s *Store, id string, clips []Clip) {
	t.Helper()
	require.NoError(t, s.WriteOutput(id, timelineFile, clips))
}

func TestRunStage3(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	seedTimeline(t, s, id, []Clip{
		{ID: "1", Outline: "话题一", ChunkIndex: 0, Content: "内容一"},
		{ID: "2", Outline: "话题二", ChunkIndex: 0, Content: "内容二"},
		{ID: "3", Outline: "话题三", ChunkIndex: 0, Content: "内容三"},
		{ID: "4", Outline: "话题四", ChunkIndex: 1, Content: "内容四"},
		{ID: "5", Outline: "话题五", ChunkIndex: 1, Content: "内容五"},
	})

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		switch call {
		case 1: // chunk 0: one item without a reason
			return `[
				{"id":"1","score":0.95,"reason":"金句密集"},
				{"id":"2","score":0.5,"reason":"节奏偏慢"},
				{"id":"3","score":0.8}
			]`, nil
		case 2: // chunk 1: wrong length poisons the batch
			return `[{"id":"4","score":0.9,"reason":"只有一条"}]`, nil
		}
		return "", fmt.Errorf("unexpected call %d", call)
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage3(context.Background(), id, meta))
	assert.Equal(t, 2, stub.calls)

	var scored []Clip
	require.NoError(t, s.ReadOutput(id, allScoredFile, &scored))
	require.Len(t, scored, 5)
	// Score descending, id ascending on ties.
	assert.Equal(t, []string{"1", "2", "3", "4", "5"},
		[]string{scored[0].ID, scored[1].ID, scored[2].ID, scored[3].ID, scored[4].ID})
	assert.Equal(t, 0.95, scored[0].FinalScore)
	assert.Equal(t, failReasonItem, scored[2].RecommendReason)
	assert.Equal(t, failReasonBatch, scored[3].RecommendReason)
	assert.Equal(t, 0.0, scored[4].FinalScore)

	var high []Clip
	require.NoError(t, s.ReadOutput(id, highScoreFile, &high))
	require.Len(t, high, 1)
	assert.Equal(t, "1", high[0].ID)
}

func TestRunStage3UnparseableBatchPoisonsChunk(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	seedTimeline(t, s, id, []Clip{
		{ID: "1", Outline: "话题一", ChunkIndex: 0, Content: "内容一"},
		{ID: "2", Outline: "话题二", ChunkIndex: 0, Content: "内容二"},
	})

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return "这些片段都很棒！", nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage3(context.Background(), id, meta))

	var scored []Clip
	require.NoError(t, s.ReadOutput(id, allScoredFile, &scored))
	for _, c := range scored {
		assert.Equal(t, 0.0, c.FinalScore)
		assert.Equal(t, failReasonBatch, c.RecommendReason)
	}

	// No clip qualifies, but the artifact is still a list.
	var high []Clip
	require.NoError(t, s.ReadOutput(id, highScoreFile, &high))
	assert.Empty(t, high)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.5))
	assert.Equal(t, 1.0, clampScore(1.5))
	assert.Equal(t, 0.7, clampScore(0.7))
}

func TestClipIDLess(t *testing.T) {
	assert.True(t, clipIDLess("2", "10"))
	assert.False(t, clipIDLess("10", "2"))
	assert.True(t, clipIDLess("a", "b")) // non-numeric falls back to string order
}
