// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package chunker splits a subtitle cue list into roughly equal-length
// chunks, preferring to cut at natural pauses in speech.
package chunker

import (
	"strings"

	"github.com/clipforge/clipforge/pkg/srt"
)

// Default tuning for Split.
const (
	DefaultTargetSeconds = 1800.0
	DefaultPauseSeconds  = 1.0
)

// Cut windows around the target duration. A cut is not considered
// before 90% of the target and a pause is only searched for up to
// 110% of the target.
const (
	earlyFactor = 0.9
	lateFactor  = 1.1
)

// Chunk is a consecutive run of cues.
type Chunk struct {
	Index int       `json:"chunk_index"`
	Cues  []srt.Cue `json:"cues"`
}

// Start returns the start time of the first cue in seconds.
func (c Chunk) Start() float64 {
	if len(c.Cues) == 0 {
		return 0
	}
	return c.Cues[0].Start
}

// End returns the end time of the last cue in seconds.
func (c Chunk) End() float64 {
	if len(c.Cues) == 0 {
		return 0
	}
	return c.Cues[len(c.Cues)-1].End
}

// Text renders the chunk as bracketed timing lines with cue text,
// blank-line separated.
func (c Chunk) Text() string {
	parts := make([]string, 0, len(c.Cues))
	for _, cue := range c.Cues {
		parts = append(parts, srt.FormatCue(cue))
	}
	return strings.Join(parts, "\n\n")
}

// Split cuts cues into chunks of about target seconds each. Starting
// from the previous cut, it skips ahead to 90% of the target, then
// takes the first inter-cue gap of at least pause seconds before 110%
// of the target. Without such a gap it cuts at the first cue starting
// at or after the target. A remainder shorter than the target becomes
// the final chunk.
func Split(cues []srt.Cue, target, pause float64) []Chunk {
	if len(cues) == 0 {
		return nil
	}
	if target <= 0 {
		target = DefaultTargetSeconds
	}
	if pause <= 0 {
		pause = DefaultPauseSeconds
	}

	var chunks []Chunk
	begin := 0
	cutTime := cues[0].Start
	for begin < len(cues) {
		want := cutTime + target
		cut := -1

		// Move past the early window.
		i := begin
		for i < len(cues) && cues[i].Start < earlyFactor*want {
			i++
		}
		// Look for a pause inside the late window.
		for j := i; j < len(cues) && cues[j].Start <= lateFactor*want; j++ {
			if j > begin && cues[j].Start-cues[j-1].End >= pause {
				cut = j
				break
			}
		}
		if cut < 0 {
			// No pause: cut at the first cue reaching the target.
			for j := i; j < len(cues); j++ {
				if cues[j].Start >= want {
					cut = j
					break
				}
			}
		}
		if cut < 0 || cut <= begin {
			break // remainder never reaches the target
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Cues: cues[begin:cut]})
		begin = cut
		cutTime = cues[cut].Start
	}
	if begin < len(cues) {
		chunks = append(chunks, Chunk{Index: len(chunks), Cues: cues[begin:]})
	}
	return chunks
}
