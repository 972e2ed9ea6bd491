package app

import (
	"sync"
)

// ProjectProgress is the live view of one run, served by the status
// endpoint.
type ProjectProgress struct {
	IsProcessing bool    `json:"is_processing"`
	CurrentStep  int     `json:"current_step"`
	TotalSteps   int     `json:"total_steps"`
	StepName     string  `json:"step_name"`
	Progress     float64 `json:"progress"`
	Error        string  `json:"error,omitempty"`
}

// ProgressTracker is the process-wide admission gate and progress map.
// One mutex guards both, so the busy check and the counter increment
// are a single atomic step.
type ProgressTracker struct {
	mu            sync.Mutex
	maxConcurrent int
	active        int
	running       map[string]bool
	status        map[string]*ProjectProgress
}

func NewProgressTracker(maxConcurrent int) *ProgressTracker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ProgressTracker{
		maxConcurrent: maxConcurrent,
		running:       map[string]bool{},
		status:        map[string]*ProjectProgress{},
	}
}

// TryStart admits a new run. The same project twice is a conflict;
// exceeding the cap is busy.
func (t *ProgressTracker) TryStart(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running[id] {
		return errConflict
	}
	if t.active >= t.maxConcurrent {
		return errBusy
	}
	t.active++
	t.running[id] = true
	t.status[id] = &ProjectProgress{
		IsProcessing: true,
		TotalSteps:   totalSteps,
	}
	return nil
}

// Finish releases the slot. The final status entry stays around so the
// status endpoint can report how the run ended.
func (t *ProgressTracker) Finish(id string, runErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active--
	delete(t.running, id)
	if st, ok := t.status[id]; ok {
		st.IsProcessing = false
		if runErr != nil {
			st.Error = runErr.Error()
		} else {
			st.Progress = 100
		}
	}
}

// Update records stage progress.
func (t *ProgressTracker) Update(id string, step int, name string, pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.status[id]
	if !ok {
		return
	}
	st.CurrentStep = step
	st.StepName = name
	st.Progress = pct
}

// Get returns a copy of the progress of one project.
func (t *ProgressTracker) Get(id string) (ProjectProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.status[id]
	if !ok {
		return ProjectProgress{}, false
	}
	return *st, true
}

// IsRunning reports whether a run is in flight for the project.
func (t *ProgressTracker) IsRunning(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running[id]
}

// FailedStep returns the step a failed run stopped at, or 0.
func (t *ProgressTracker) FailedStep(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.status[id]
	if !ok || st.IsProcessing || st.Error == "" {
		return 0
	}
	return st.CurrentStep
}
