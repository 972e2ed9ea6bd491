package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerConflictAndBusy(t *testing.T) {
	tr := NewProgressTracker(1)

	require.NoError(t, tr.TryStart("a"))
	assert.ErrorIs(t, tr.TryStart("a"), errConflict)
	assert.ErrorIs(t, tr.TryStart("b"), errBusy)

	tr.Finish("a", nil)
	require.NoError(t, tr.TryStart("b"))
	tr.Finish("b", nil)
}

func TestTrackerSlotRestoredAfterFailure(t *testing.T) {
	tr := NewProgressTracker(1)
	require.NoError(t, tr.TryStart("a"))
	tr.Finish("a", fmt.Errorf("step failed"))

	st, ok := tr.Get("a")
	require.True(t, ok)
	assert.False(t, st.IsProcessing)
	assert.Contains(t, st.Error, "step failed")

	// The slot is free again.
	require.NoError(t, tr.TryStart("b"))
	tr.Finish("b", nil)
}

func TestTrackerConcurrentSameProject(t *testing.T) {
	tr := NewProgressTracker(4)
	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tr.TryStart("same")
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one start of the same project may win")
}

func TestTrackerProgressUpdates(t *testing.T) {
	tr := NewProgressTracker(1)
	require.NoError(t, tr.TryStart("p"))

	tr.Update("p", 2, "时间点定位", entryProgress(2))
	st, ok := tr.Get("p")
	require.True(t, ok)
	assert.Equal(t, 2, st.CurrentStep)
	assert.Equal(t, "时间点定位", st.StepName)
	assert.InDelta(t, 16.67, st.Progress, 0.01)

	tr.Finish("p", nil)
	st, _ = tr.Get("p")
	assert.Equal(t, 100.0, st.Progress)
}

func TestProgressSchedule(t *testing.T) {
	assert.InDelta(t, 0.0, entryProgress(1), 0.001)
	assert.InDelta(t, 16.667, exitProgress(1), 0.001)
	assert.InDelta(t, 33.333, exitProgress(2), 0.001)
	assert.InDelta(t, 50.0, exitProgress(3), 0.001)
	assert.InDelta(t, 66.667, exitProgress(4), 0.001)
	assert.InDelta(t, 83.333, exitProgress(5), 0.001)
	assert.InDelta(t, 100.0, exitProgress(6), 0.001)
}
