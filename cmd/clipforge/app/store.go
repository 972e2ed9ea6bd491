// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// Store manages the per-project artifact trees below root/projects.
// Every JSON file is written atomically so that a crash can never
// leave a half-written artifact behind.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	s := &Store{root: root}
	if err := os.MkdirAll(s.projectsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	return s, nil
}

func (s *Store) projectsDir() string          { return filepath.Join(s.root, "projects") }
func (s *Store) ProjectDir(id string) string  { return filepath.Join(s.projectsDir(), id) }
func (s *Store) RawDir(id string) string      { return filepath.Join(s.ProjectDir(id), "raw") }
func (s *Store) OutputsDir(id string) string  { return filepath.Join(s.ProjectDir(id), "outputs") }
func (s *Store) ClipsDir(id string) string    { return filepath.Join(s.ProjectDir(id), "clips") }
func (s *Store) CollectionsDir(id string) string {
	return filepath.Join(s.ProjectDir(id), "collections")
}
func (s *Store) SettingsPath() string { return filepath.Join(s.root, "settings.json") }

func (s *Store) metadataPath(id string) string {
	return filepath.Join(s.ProjectDir(id), "project_metadata.json")
}

func (s *Store) stepResultPath(id string, step int) string {
	return filepath.Join(s.OutputsDir(id), fmt.Sprintf("step%d_result.json", step))
}

// OutputPath returns the path of a named artifact in outputs/.
func (s *Store) OutputPath(id, name string) string {
	return filepath.Join(s.OutputsDir(id), name)
}

// CreateProject allocates an id and the directory tree for a new project.
func (s *Store) CreateProject(name, category string) (*ProjectMetadata, error) {
	id := uuid.NewString()
	for _, dir := range []string{
		s.RawDir(id), s.OutputsDir(id), s.ClipsDir(id), s.CollectionsDir(id),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create project dirs: %w", err)
		}
	}
	meta := &ProjectMetadata{
		ProjectID:   id,
		ProjectName: name,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Status:      statusCreated,
		TotalSteps:  totalSteps,
		FileInfo:    FileInfo{Category: category},
	}
	if err := s.SaveMetadata(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// LoadMetadata reads the metadata of one project.
func (s *Store) LoadMetadata(id string) (*ProjectMetadata, error) {
	var meta ProjectMetadata
	if err := readJSONFile(s.metadataPath(id), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project %s: %w", id, errNotFound)
		}
		return nil, err
	}
	return &meta, nil
}

func (s *Store) SaveMetadata(meta *ProjectMetadata) error {
	return writeJSONFile(s.metadataPath(meta.ProjectID), meta)
}

// SaveProcessingResult records the step a project reached and its status.
func (s *Store) SaveProcessingResult(id string, step int, status, errMsg string) error {
	meta, err := s.LoadMetadata(id)
	if err != nil {
		return err
	}
	meta.CurrentStep = step
	meta.Status = status
	meta.ErrorMessage = errMsg
	return s.SaveMetadata(meta)
}

// ListProjects returns all project metadata, newest first.
func (s *Store) ListProjects() ([]*ProjectMetadata, error) {
	entries, err := os.ReadDir(s.projectsDir())
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}
	var metas []*ProjectMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(e.Name())
		if err != nil {
			continue // skip directories without valid metadata
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt > metas[j].CreatedAt
	})
	return metas, nil
}

// DeleteProject removes the whole project tree.
func (s *Store) DeleteProject(id string) error {
	if _, err := s.LoadMetadata(id); err != nil {
		return err
	}
	return os.RemoveAll(s.ProjectDir(id))
}

// MarkStep writes the completion marker of one stage.
func (s *Store) MarkStep(id string, step int, msg string) error {
	res := StepResult{
		Step:       step,
		Status:     statusCompleted,
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
		Message:    msg,
	}
	return writeJSONFile(s.stepResultPath(id, step), res)
}

// StepDone reports whether a stage has a valid completion marker.
func (s *Store) StepDone(id string, step int) bool {
	var res StepResult
	if err := readJSONFile(s.stepResultPath(id, step), &res); err != nil {
		return false
	}
	return res.Status == statusCompleted
}

// ClearStepsFrom removes markers for step and everything after it, so
// a rerun starts fresh from there.
func (s *Store) ClearStepsFrom(id string, step int) error {
	for n := step; n <= totalSteps; n++ {
		if err := os.Remove(s.stepResultPath(id, n)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ReadOutput reads a JSON artifact from outputs/.
func (s *Store) ReadOutput(id, name string, out any) error {
	return readJSONFile(s.OutputPath(id, name), out)
}

// WriteOutput writes a JSON artifact to outputs/.
func (s *Store) WriteOutput(id, name string, v any) error {
	return writeJSONFile(s.OutputPath(id, name), v)
}

func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSONFile writes v as indented JSON via a temp file that is
// renamed into place.
func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("pending file %s: %w", filepath.Base(path), err)
	}
	defer pf.Cleanup() //nolint:errcheck // no-op after successful replace
	if _, err := pf.Write(raw); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}

// writeTextFile writes a plain text artifact atomically.
func writeTextFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer pf.Cleanup() //nolint:errcheck
	if _, err := pf.WriteString(text); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
