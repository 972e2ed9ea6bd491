// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package chunker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/pkg/srt"
)

// contiguous produces back-to-back cues of the given step length
// covering [0, total).
func contiguous(total, step float64) []srt.Cue {
	var cues []srt.Cue
	for t := 0.0; t < total; t += step {
		cues = append(cues, srt.Cue{
			Index: len(cues) + 1,
			Start: t,
			End:   t + step,
			Text:  fmt.Sprintf("cue %d", len(cues)+1),
		})
	}
	return cues
}

func TestSplitCutsAtPause(t *testing.T) {
	cues := contiguous(95, 5)
	// 2s silence, then speech resumes
	for t := 97.0; t < 150; t += 5 {
		cues = append(cues, srt.Cue{Start: t, End: t + 5, Text: "late"})
	}
	chunks := Split(cues, 100, 1)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 95.0, chunks[0].End())
	assert.Equal(t, 97.0, chunks[1].Start())
}

func TestSplitFallbackWithoutPause(t *testing.T) {
	chunks := Split(contiguous(200, 5), 100, 1)
	require.Len(t, chunks, 2)
	assert.Equal(t, 100.0, chunks[1].Start())
	assert.Equal(t, 200.0, chunks[1].End())
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	cues := contiguous(50, 5)
	chunks := Split(cues, 100, 1)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Cues, len(cues))
}

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split(nil, 100, 1))
}

func TestSplitIgnoresPauseInEarlyWindow(t *testing.T) {
	// A long gap at t=50 lies before 90% of the target and must not
	// trigger a cut.
	cues := contiguous(50, 5)
	for t := 60.0; t < 200; t += 5 {
		cues = append(cues, srt.Cue{Start: t, End: t + 5, Text: "x"})
	}
	chunks := Split(cues, 100, 1)
	require.NotEmpty(t, chunks)
	assert.Greater(t, chunks[0].End(), 90.0)
}

func TestChunkText(t *testing.T) {
	c := Chunk{Cues: []srt.Cue{
		{Start: 0, End: 1, Text: "one"},
		{Start: 1, End: 2, Text: "two"},
	}}
	want := "[00:00:00,000 --> 00:00:01,000]\none\n\n[00:00:01,000 --> 00:00:02,000]\ntwo"
	assert.Equal(t, want, c.Text())
}
