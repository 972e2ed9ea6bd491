package app

import (
	"errors"
	"fmt"
)

var (
	errNotFound = errors.New("not found")
	// errConflict is returned when a run is requested for a project
	// that already has one in flight.
	errConflict = errors.New("project already processing")
	// errBusy is returned when the concurrent processing cap is reached.
	errBusy = errors.New("server busy, too many projects processing")
)

// stageError wraps a failure with the stage it happened in, so a retry
// can resume from there.
type stageError struct {
	stage int
	err   error
}

func newStageError(stage int, err error) stageError {
	return stageError{stage: stage, err: err}
}

func (e stageError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.stage, stepNames[e.stage], e.err)
}

func (e stageError) Unwrap() error {
	return e.err
}

// authError marks an LLM error that retrying cannot fix, such as a bad
// API key or a rejected parameter.
type authError struct {
	status int
	msg    string
}

func (e *authError) Error() string {
	return fmt.Sprintf("api rejected request (status %d): %s", e.status, e.msg)
}
