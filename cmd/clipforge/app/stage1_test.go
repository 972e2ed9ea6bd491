package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/pkg/srt"
)

const outlineResponse = `以下是本段的主题大纲：

1. **投资理财入门**
- 股票和基金的区别
- 适合新手的配置思路

2. 职场跳槽建议
- 如何准备面试

3. **投资理财入门**
- 重复的主题不应出现两次
`

func TestParseOutline(t *testing.T) {
	items := parseOutline(outlineResponse, 2)
	require.Len(t, items, 3)
	assert.Equal(t, "投资理财入门", items[0].Title)
	assert.Equal(t, []string{"股票和基金的区别", "适合新手的配置思路"}, items[0].Bullets)
	assert.Equal(t, "职场跳槽建议", items[1].Title)
	assert.Equal(t, 2, items[0].ChunkIndex)
}

func TestParseOutlineSkipsOverlongBullets(t *testing.T) {
	text := "1. 标题\n- " + strings.Repeat("长", maxBulletLength+1) + "\n- 正常要点\n"
	items := parseOutline(text, 0)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"正常要点"}, items[0].Bullets)
}

func TestParseOutlineIgnoresStrayBullets(t *testing.T) {
	items := parseOutline("- 没有标题的要点\n不是大纲格式的行\n", 0)
	assert.Empty(t, items)
}

func TestRunStage1(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return outlineResponse, nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage1(context.Background(), id, meta))
	assert.Equal(t, 1, stub.calls)

	var items []OutlineItem
	require.NoError(t, s.ReadOutput(id, outlineFile, &items))
	// The duplicate title from the response is dropped.
	require.Len(t, items, 2)
	assert.Equal(t, "投资理财入门", items[0].Title)
	assert.Equal(t, 0, items[0].ChunkIndex)

	// Chunk text and raw response are durable.
	_, err := os.Stat(s.OutputPath(id, chunkTextDir+"/chunk_0.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(s.OutputPath(id, outlineRawDir+"/chunk_0.txt"))
	assert.NoError(t, err)
}

func TestRunStage1ReusesCachedResponses(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID

	rawPath := s.OutputPath(id, outlineRawDir+"/chunk_0.txt")
	require.NoError(t, writeTextFile(rawPath, outlineResponse))

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return "", fmt.Errorf("must not be called")
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage1(context.Background(), id, meta))
	assert.Equal(t, 0, stub.calls)
}

func TestRunStage1NoTopicsYieldsEmptyOutline(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID

	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		return "这段内容没有值得提取的主题。", nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage1(context.Background(), id, meta))

	var items []OutlineItem
	require.NoError(t, s.ReadOutput(id, outlineFile, &items))
	assert.Empty(t, items)
}

// longSRT renders n contiguous-ish cues, 10 s of speech followed by a
// 2 s pause each, enough to force multiple chunks.
func longSRT(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		start := float64(i) * 12
		fmt.Fprintf(&sb, "%d\n%s --> %s\n第%d段讲解内容\n\n",
			i+1, srt.FromSeconds(start), srt.FromSeconds(start+10), i+1)
	}
	return sb.String()
}

func TestRunStage1SkipsFailedChunk(t *testing.T) {
	p, s := newTestPipeline(t)
	meta := seedProject(t, s)
	id := meta.ProjectID
	// 250 cues over ~50 minutes split into two chunks.
	require.NoError(t, os.WriteFile(meta.FileInfo.SrtPath, []byte(longSRT(250)), 0o644))

	// One attempt only, so the test does not wait out the backoff.
	p.settings.cur.MaxRetries = 1
	stub := &stubProvider{fn: func(call int, prompt string, input any) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("model unavailable")
		}
		return outlineResponse, nil
	}}
	useStub(p, stub)

	require.NoError(t, p.runStage1(context.Background(), id, meta))
	assert.Equal(t, 2, stub.calls)

	// Only the second chunk contributed topics.
	var items []OutlineItem
	require.NoError(t, s.ReadOutput(id, outlineFile, &items))
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, 1, it.ChunkIndex)
	}
}
