package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStage5ModelClusters(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	require.NoError(t, s.WriteOutput(id, titlesFile, []Clip{
		{ID: "1", Outline: "投资理财入门", GeneratedTitle: "三分钟看懂投资", FinalScore: 0.9},
		{ID: "2", Outline: "基金定投详解", GeneratedTitle: "定投到底香不香", FinalScore: 0.85},
		{ID: "3", Outline: "职场跳槽建议", GeneratedTitle: "跳槽前必看", FinalScore: 0.8},
		{ID: "4", Outline: "面试避坑指南", FinalScore: 0.75},
	}))

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		// Clips referenced by generated title, outline, raw id and one
		// unresolvable name.
		return `[
			{"collection_title":"理财专题","collection_summary":"投资相关内容","clips":["三分钟看懂投资","定投到底香不香"]},
			{"collection_title":"职场专题","collection_summary":"职场相关内容","clips":["职场跳槽建议","4","不存在的片段"]},
			{"collection_title":"混合精选","collection_summary":"跨主题精选","clips":["三分钟看懂投资","跳槽前必看"]}
		]`, nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage5(context.Background(), id, meta))

	var cols []Collection
	require.NoError(t, s.ReadOutput(id, collectionsFile, &cols))
	require.Len(t, cols, 3)
	assert.Equal(t, "1", cols[0].ID)
	assert.Equal(t, []string{"1", "2"}, cols[0].ClipIDs)
	assert.Equal(t, []string{"3", "4"}, cols[1].ClipIDs)
	assert.Equal(t, []string{"1", "3"}, cols[2].ClipIDs)
}

// A single model collection with an empty summary is still a usable
// result; the fallbacks must not trade it away for nothing.
func TestRunStage5KeepsModelCollectionWithEmptySummary(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	require.NoError(t, s.WriteOutput(id, titlesFile, []Clip{
		{ID: "1", Outline: "耐心的价值", GeneratedTitle: "耐心的回报", FinalScore: 0.9},
		{ID: "2", Outline: "意面的做法", GeneratedTitle: "三分钟学做意面", FinalScore: 0.8},
	}))

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return `[{"collection_title":"生活小技巧","collection_summary":"","clips":["耐心的回报","三分钟学做意面"]}]`, nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage5(context.Background(), id, meta))

	var cols []Collection
	require.NoError(t, s.ReadOutput(id, collectionsFile, &cols))
	require.Len(t, cols, 1)
	assert.Equal(t, "生活小技巧", cols[0].Title)
	assert.Equal(t, "", cols[0].Summary)
	assert.Equal(t, []string{"1", "2"}, cols[0].ClipIDs)
}

func TestRunStage5DropsThinCollections(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	require.NoError(t, s.WriteOutput(id, titlesFile, []Clip{
		{ID: "1", Outline: "投资理财入门", FinalScore: 0.9},
		{ID: "2", Outline: "直播弹幕互动", FinalScore: 0.65},
	}))

	// Only one clip of the collection resolves, so the model result is
	// unusable and the fallbacks run; with these scores the tiers cannot
	// form either, leaving no collections.
	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return `[{"collection_title":"残缺","collection_summary":"只有一个能解析","clips":["投资理财入门","不存在"]}]`, nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage5(context.Background(), id, meta))

	var cols []Collection
	require.NoError(t, s.ReadOutput(id, collectionsFile, &cols))
	assert.Empty(t, cols)
}

func TestRunStage5KeywordFallback(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	require.NoError(t, s.WriteOutput(id, titlesFile, []Clip{
		{ID: "1", Outline: "股票投资入门", FinalScore: 0.9},
		{ID: "2", Outline: "基金理财思路", FinalScore: 0.85},
		{ID: "3", Outline: "职场晋升经验", FinalScore: 0.8},
		{ID: "4", Outline: "面试与跳槽", FinalScore: 0.78},
		{ID: "5", Outline: "直播连麦名场面", FinalScore: 0.75},
		{ID: "6", Outline: "弹幕观众提问", FinalScore: 0.72},
	}))

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return "无法完成聚类。", nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage5(context.Background(), id, meta))

	var cols []Collection
	require.NoError(t, s.ReadOutput(id, collectionsFile, &cols))
	require.Len(t, cols, 3)
	assert.Equal(t, "投资理财", cols[0].Title)
	assert.Equal(t, []string{"1", "2"}, cols[0].ClipIDs)
	assert.Equal(t, "职场成长", cols[1].Title)
	assert.Equal(t, []string{"3", "4"}, cols[1].ClipIDs)
	assert.Equal(t, "直播互动", cols[2].Title)
	assert.Equal(t, []string{"5", "6"}, cols[2].ClipIDs)
}

func TestRunStage5TooFewClips(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	require.NoError(t, s.WriteOutput(id, titlesFile, []Clip{
		{ID: "1", Outline: "唯一的片段", FinalScore: 0.9},
	}))

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return "", fmt.Errorf("must not be called")
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage5(context.Background(), id, meta))
	assert.Equal(t, 0, stub.calls)

	var cols []Collection
	require.NoError(t, s.ReadOutput(id, collectionsFile, &cols))
	assert.Empty(t, cols)
}

func TestScoreTierCluster(t *testing.T) {
	clips := []Clip{
		{ID: "1", FinalScore: 0.95},
		{ID: "2", FinalScore: 0.85},
		{ID: "3", FinalScore: 0.7},
		{ID: "4", FinalScore: 0.65},
	}
	cols := scoreTierCluster(clips, 5)
	require.Len(t, cols, 2)
	assert.Equal(t, "精选推荐", cols[0].Title)
	assert.Equal(t, []string{"1", "2"}, cols[0].ClipIDs)
	assert.Equal(t, "优质内容", cols[1].Title)
	assert.Equal(t, []string{"3", "4"}, cols[1].ClipIDs)
}

func TestKeywordClusterAssignsEachClipOnce(t *testing.T) {
	// "投资" and "理财" both match the first theme; a clip mentioning a
	// later theme's keyword as well must not appear twice.
	clips := []Clip{
		{ID: "1", Outline: "投资与职场"},
		{ID: "2", Outline: "理财与职场"},
		{ID: "3", Outline: "职场面试"},
		{ID: "4", Outline: "职场老板"},
	}
	cols := keywordCluster(clips, 5)
	require.Len(t, cols, 2)
	assert.Equal(t, []string{"1", "2"}, cols[0].ClipIDs)
	assert.Equal(t, []string{"3", "4"}, cols[1].ClipIDs)
}
