// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/clipforge/clipforge/pkg/srt"
)

// MediaTool runs ffmpeg and ffprobe. All cutting is stream copy; no
// re-encoding happens anywhere.
type MediaTool struct {
	ffmpeg  string
	ffprobe string
}

func NewMediaTool(ffmpeg, ffprobe string) *MediaTool {
	return &MediaTool{ffmpeg: ffmpeg, ffprobe: ffprobe}
}

// sanitizeFilename makes a title safe as a file name: forbidden
// characters become underscores, surrounding spaces and dots go away,
// and the result is capped at 100 characters.
func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>:"|?*\/`, r):
			sb.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			sb.WriteRune('_')
		case unicode.IsSpace(r) && r != ' ':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	out := strings.Trim(sb.String(), " .")
	r := []rune(out)
	if len(r) > 100 {
		out = string(r[:100])
	}
	if out == "" {
		out = "untitled"
	}
	return out
}

func (m *MediaTool) run(ctx context.Context, tool string, args []string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	name := filepath.Base(tool)
	slog.Debug("running media tool", "tool", name, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		ffmpegRuns.WithLabelValues(name, "error").Inc()
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	ffmpegRuns.WithLabelValues(name, "ok").Inc()
	return nil
}

// ExtractClip cuts [startS, startS+durS) out of video into outPath
// with stream copy.
func (m *MediaTool) ExtractClip(ctx context.Context, video string, startS, durS float64, outPath string) error {
	if durS <= 0 {
		return fmt.Errorf("non-positive clip duration %.3fs", durS)
	}
	args := []string{
		"-ss", ffmpegTime(startS),
		"-i", video,
		"-t", ffmpegTime(durS),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", outPath,
	}
	return m.run(ctx, m.ffmpeg, args)
}

// Concat joins inputs in order into outPath using the concat demuxer.
func (m *MediaTool) Concat(ctx context.Context, inputs []string, outPath string) error {
	if len(inputs) < 2 {
		return fmt.Errorf("concat needs at least 2 inputs, got %d", len(inputs))
	}
	listFile, err := writeConcatList(inputs, filepath.Dir(outPath))
	if err != nil {
		return err
	}
	defer os.Remove(listFile)
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-y", outPath,
	}
	return m.run(ctx, m.ffmpeg, args)
}

// writeConcatList writes a concat demuxer list file next to the output.
// Single quotes in paths are escaped the way the demuxer expects.
func writeConcatList(inputs []string, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "concat_*.txt")
	if err != nil {
		return "", err
	}
	for _, in := range inputs {
		quoted := strings.ReplaceAll(in, "'", `'\''`)
		if _, err := fmt.Fprintf(f, "file '%s'\n", quoted); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// ProbeInfo is the subset of ffprobe output we care about.
type ProbeInfo struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	} `json:"streams"`
}

// Probe returns format and stream info for a media file.
func (m *MediaTool) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, m.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		ffmpegRuns.WithLabelValues("ffprobe", "error").Inc()
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	ffmpegRuns.WithLabelValues("ffprobe", "ok").Inc()
	var info ProbeInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	return &info, nil
}

// ffmpegTime renders seconds as HH:MM:SS.mmm, the form ffmpeg accepts
// for -ss and -t.
func ffmpegTime(s float64) string {
	return strings.Replace(srt.FromSeconds(s), ",", ".", 1)
}

// cutSubtitles extracts the cues overlapping [startS, endS) and
// rebases their times to the clip start.
func cutSubtitles(cues []srt.Cue, startS, endS float64) string {
	var sb strings.Builder
	n := 0
	for _, c := range cues {
		if c.Start >= endS || c.End <= startS {
			continue
		}
		n++
		from := c.Start - startS
		to := c.End - startS
		if from < 0 {
			from = 0
		}
		if to > endS-startS {
			to = endS - startS
		}
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			n, srt.FromSeconds(from), srt.FromSeconds(to), c.Text)
	}
	return sb.String()
}
