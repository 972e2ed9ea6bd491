// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package srt parses SubRip subtitle files and converts between
// SubRip timecodes (HH:MM:SS,mmm) and seconds.
package srt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Cue is one subtitle entry with times in seconds.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

const bom = "\uFEFF"

// Parse reads a full SubRip document. Malformed blocks are skipped,
// as are cues whose end does not come after their start. A document
// without any valid cue yields an empty slice, not an error.
func Parse(r io.Reader) ([]Cue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cues []Cue
	var lines []string
	flush := func() {
		if c, ok := parseBlock(lines); ok {
			cues = append(cues, c)
		}
		lines = lines[:0]
	}
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, bom)
			first = false
		}
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	flush()
	return cues, nil
}

// parseBlock interprets one blank-line separated block: an index line,
// a timing line, and one or more text lines.
func parseBlock(lines []string) (Cue, bool) {
	if len(lines) < 2 {
		return Cue{}, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	timingLine := 1
	if err != nil {
		// Some files omit the index line.
		idx = 0
		timingLine = 0
	}
	if timingLine >= len(lines) {
		return Cue{}, false
	}
	parts := strings.Split(lines[timingLine], "-->")
	if len(parts) != 2 {
		return Cue{}, false
	}
	start, err := ToSeconds(strings.TrimSpace(parts[0]))
	if err != nil {
		return Cue{}, false
	}
	end, err := ToSeconds(strings.TrimSpace(parts[1]))
	if err != nil {
		return Cue{}, false
	}
	if end <= start {
		return Cue{}, false
	}
	text := strings.TrimSpace(strings.Join(lines[timingLine+1:], "\n"))
	if text == "" {
		return Cue{}, false
	}
	return Cue{Index: idx, Start: start, End: end, Text: text}, true
}

// ToSeconds converts a SubRip timecode HH:MM:SS,mmm to seconds.
// A dot is accepted in place of the comma.
func ToSeconds(tc string) (float64, error) {
	tc = strings.TrimSpace(tc)
	main := tc
	ms := 0
	if i := strings.IndexAny(tc, ",."); i >= 0 {
		main = tc[:i]
		var err error
		msStr := tc[i+1:]
		ms, err = strconv.Atoi(msStr)
		if err != nil || len(msStr) != 3 {
			return 0, fmt.Errorf("bad milliseconds in timecode %q", tc)
		}
	}
	parts := strings.Split(main, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad timecode %q", tc)
	}
	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad timecode %q", tc)
		}
		hms[i] = v
	}
	if hms[1] > 59 || hms[2] > 59 {
		return 0, fmt.Errorf("bad timecode %q", tc)
	}
	return float64(hms[0]*3600+hms[1]*60+hms[2]) + float64(ms)/1000.0, nil
}

// FromSeconds renders seconds as a SubRip timecode with millisecond
// precision. Negative values clamp to zero.
func FromSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	totalMS := int64(math.Round(s * 1000))
	ms := totalMS % 1000
	totalSec := totalMS / 1000
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	sec := totalSec % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, sec, ms)
}

// TextInRange joins the text of all cues overlapping [start, end).
func TextInRange(cues []Cue, start, end float64) string {
	var sb strings.Builder
	for _, c := range cues {
		if c.Start < end && c.End > start {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// FormatCue renders one cue as a bracketed timing line followed by its
// text, the form used when presenting transcript extracts.
func FormatCue(c Cue) string {
	return fmt.Sprintf("[%s --> %s]\n%s", FromSeconds(c.Start), FromSeconds(c.End), c.Text)
}
