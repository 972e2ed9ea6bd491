package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/pkg/srt"
)

const (
	clipsMetadataFile       = "clips_metadata.json"
	collectionsMetadataFile = "collections_metadata.json"
)

// runStage6 cuts the high-score clips out of the source video, writes
// per-clip subtitle sidecars, builds the collection videos, and
// records the metadata of everything generated.
func (p *Pipeline) runStage6(ctx context.Context, id string, meta *ProjectMetadata) error {
	var high []Clip
	if err := p.store.ReadOutput(id, titlesFile, &high); err != nil {
		return fmt.Errorf("read titled clips: %w", err)
	}
	var collections []Collection
	if err := p.store.ReadOutput(id, collectionsFile, &collections); err != nil {
		return fmt.Errorf("read collections: %w", err)
	}

	var cues []srt.Cue
	if f, err := os.Open(meta.FileInfo.SrtPath); err == nil {
		cues, _ = srt.Parse(f)
		f.Close()
	}

	clipsDir := p.store.ClipsDir(id)
	var clipMetas []ClipMetadata
	for _, c := range high {
		start := mustSeconds(c.StartTime)
		end := mustSeconds(c.EndTime)
		outPath := filepath.Join(clipsDir, fmt.Sprintf("%s_%s.mp4", c.ID, sanitizeFilename(c.Title())))
		if _, err := os.Stat(outPath); err != nil {
			if err := p.media.ExtractClip(ctx, meta.FileInfo.VideoPath, start, end-start, outPath); err != nil {
				// One bad cut does not stop the rest of the batch.
				slog.Error("clip extraction failed, skipping", "project", id,
					"clip", c.ID, "err", err)
				continue
			}
		} else {
			slog.Debug("clip file already present", "project", id, "clip", c.ID)
		}
		cm := ClipMetadata{Clip: c, FilePath: outPath, DurationS: end - start}
		if len(cues) > 0 {
			srtPath := outPath[:len(outPath)-len(".mp4")] + ".srt"
			if err := writeTextFile(srtPath, cutSubtitles(cues, start, end)); err != nil {
				slog.Warn("could not write clip subtitles", "project", id,
					"clip", c.ID, "err", err)
			} else {
				cm.SrtPath = srtPath
			}
		}
		clipMetas = append(clipMetas, cm)
	}

	var colMetas []CollectionMetadata
	for _, col := range collections {
		var inputs []string
		for _, clipID := range col.ClipIDs {
			matches, err := filepath.Glob(filepath.Join(clipsDir, clipID+"_*.mp4"))
			if err != nil || len(matches) == 0 {
				slog.Warn("collection clip file missing", "project", id,
					"collection", col.Title, "clip", clipID)
				continue
			}
			inputs = append(inputs, matches[0])
		}
		if len(inputs) < minClipsPerCol {
			slog.Warn("skipping collection with too few clip files", "project", id,
				"collection", col.Title, "files", len(inputs))
			continue
		}
		outPath := filepath.Join(p.store.CollectionsDir(id), sanitizeFilename(col.Title)+".mp4")
		if err := p.media.Concat(ctx, inputs, outPath); err != nil {
			slog.Error("collection concat failed, skipping", "project", id,
				"collection", col.Title, "err", err)
			continue
		}
		colMetas = append(colMetas, CollectionMetadata{Collection: col, FilePath: outPath})
	}

	if clipMetas == nil {
		clipMetas = []ClipMetadata{}
	}
	if colMetas == nil {
		colMetas = []CollectionMetadata{}
	}
	if err := p.store.WriteOutput(id, clipsMetadataFile, clipMetas); err != nil {
		return err
	}
	if err := p.store.WriteOutput(id, collectionsMetadataFile, colMetas); err != nil {
		return err
	}
	slog.Info("media generated", "project", id,
		"clips", len(clipMetas), "collections", len(colMetas))
	return nil
}
