package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
)

// buildManualCollection joins already generated clip files into a new
// collection video and appends it to the collection metadata. Callers
// must ensure no pipeline run is active for the project.
func (s *Server) buildManualCollection(ctx context.Context, projectID, title, summary string, clipIDs []string) (*CollectionMetadata, error) {
	if _, err := s.store.LoadMetadata(projectID); err != nil {
		return nil, err
	}
	var clips []ClipMetadata
	if err := s.store.ReadOutput(projectID, clipsMetadataFile, &clips); err != nil {
		return nil, fmt.Errorf("no clips generated yet: %w", errNotFound)
	}
	byID := map[string]ClipMetadata{}
	for _, c := range clips {
		byID[c.ID] = c
	}

	var inputs []string
	var ids []string
	for _, cid := range clipIDs {
		c, ok := byID[cid]
		if !ok {
			return nil, fmt.Errorf("clip %s does not exist", cid)
		}
		inputs = append(inputs, c.FilePath)
		ids = append(ids, cid)
	}
	if len(inputs) < minClipsPerCol {
		return nil, fmt.Errorf("a collection needs at least %d clips", minClipsPerCol)
	}

	outPath := filepath.Join(s.store.CollectionsDir(projectID), sanitizeFilename(title)+".mp4")
	if err := s.media.Concat(ctx, inputs, outPath); err != nil {
		return nil, err
	}

	var cols []CollectionMetadata
	if err := s.store.ReadOutput(projectID, collectionsMetadataFile, &cols); err != nil {
		cols = []CollectionMetadata{}
	}
	cm := CollectionMetadata{
		Collection: Collection{
			ID:      strconv.Itoa(len(cols) + 1),
			Title:   title,
			Summary: summary,
			ClipIDs: ids,
		},
		FilePath: outPath,
	}
	cols = append(cols, cm)
	if err := s.store.WriteOutput(projectID, collectionsMetadataFile, cols); err != nil {
		return nil, err
	}
	slog.Info("manual collection created", "project", projectID,
		"title", title, "clips", len(ids))
	return &cm, nil
}
