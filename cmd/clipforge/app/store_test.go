package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndLoadProject(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("测试项目", "business")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ProjectID)
	assert.Equal(t, statusCreated, meta.Status)
	assert.Equal(t, totalSteps, meta.TotalSteps)
	assert.Equal(t, "business", meta.FileInfo.Category)

	got, err := s.LoadMetadata(meta.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	for _, dir := range []string{
		s.RawDir(meta.ProjectID), s.OutputsDir(meta.ProjectID),
		s.ClipsDir(meta.ProjectID), s.CollectionsDir(meta.ProjectID),
	} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestLoadMetadataNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadMetadata("nope")
	assert.ErrorIs(t, err, errNotFound)
}

func TestStepMarkers(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("p", "default")
	require.NoError(t, err)
	id := meta.ProjectID

	assert.False(t, s.StepDone(id, 1))
	require.NoError(t, s.MarkStep(id, 1, "大纲提取"))
	require.NoError(t, s.MarkStep(id, 2, "时间点定位"))
	assert.True(t, s.StepDone(id, 1))
	assert.True(t, s.StepDone(id, 2))
	assert.False(t, s.StepDone(id, 3))

	require.NoError(t, s.ClearStepsFrom(id, 2))
	assert.True(t, s.StepDone(id, 1))
	assert.False(t, s.StepDone(id, 2))
}

func TestStepMarkerCorruptIsNotDone(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("p", "default")
	require.NoError(t, err)
	path := s.stepResultPath(meta.ProjectID, 1)
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))
	assert.False(t, s.StepDone(meta.ProjectID, 1))
}

func TestSaveProcessingResult(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("p", "default")
	require.NoError(t, err)

	require.NoError(t, s.SaveProcessingResult(meta.ProjectID, 3, statusError, "boom"))
	got, err := s.LoadMetadata(meta.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStep)
	assert.Equal(t, statusError, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestListProjectsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	first, err := s.CreateProject("first", "default")
	require.NoError(t, err)
	// CreatedAt has second resolution
	time.Sleep(1100 * time.Millisecond)
	second, err := s.CreateProject("second", "default")
	require.NoError(t, err)

	list, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ProjectID, list[0].ProjectID)
	assert.Equal(t, first.ProjectID, list[1].ProjectID)
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("p", "default")
	require.NoError(t, err)
	require.NoError(t, s.DeleteProject(meta.ProjectID))
	_, err = s.LoadMetadata(meta.ProjectID)
	assert.ErrorIs(t, err, errNotFound)

	assert.ErrorIs(t, s.DeleteProject("nope"), errNotFound)
}

func TestWriteOutputAtomic(t *testing.T) {
	s := newTestStore(t)
	meta, err := s.CreateProject("p", "default")
	require.NoError(t, err)
	id := meta.ProjectID

	require.NoError(t, s.WriteOutput(id, "nested/dir/thing.json", map[string]int{"a": 1}))
	var out map[string]int
	require.NoError(t, s.ReadOutput(id, "nested/dir/thing.json", &out))
	assert.Equal(t, 1, out["a"])

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Join(s.OutputsDir(id), "nested", "dir"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
