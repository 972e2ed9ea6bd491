package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const finalResultsFile = "final_results.json"

// Pipeline drives a project through the six stages. Each stage leaves
// a durable completion marker, so an interrupted or failed run resumes
// where it stopped instead of repeating finished work.
type Pipeline struct {
	store    *Store
	prompts  *PromptLoader
	media    *MediaTool
	settings *SettingsMgr
	progress *ProgressTracker
	// newProv builds the LLM provider per stage; tests replace it.
	newProv func(Settings) (Provider, error)
}

func NewPipeline(store *Store, prompts *PromptLoader, media *MediaTool,
	settings *SettingsMgr, progress *ProgressTracker) *Pipeline {
	return &Pipeline{
		store:    store,
		prompts:  prompts,
		media:    media,
		settings: settings,
		progress: progress,
		newProv:  newProvider,
	}
}

type stageFunc func(ctx context.Context, id string, meta *ProjectMetadata) error

func (p *Pipeline) stages() [totalSteps + 1]stageFunc {
	return [totalSteps + 1]stageFunc{
		nil,
		p.runStage1,
		p.runStage2,
		p.runStage3,
		p.runStage4,
		p.runStage5,
		p.runStage6,
	}
}

// RunAll processes a project from the beginning.
func (p *Pipeline) RunAll(ctx context.Context, id string) error {
	return p.RunFrom(ctx, id, 1)
}

// RunFrom processes a project from the given step. Steps with a valid
// completion marker are skipped.
func (p *Pipeline) RunFrom(ctx context.Context, id string, fromStep int) error {
	if fromStep < 1 || fromStep > totalSteps {
		return fmt.Errorf("step %d outside 1..%d", fromStep, totalSteps)
	}
	meta, err := p.store.LoadMetadata(id)
	if err != nil {
		return err
	}
	if meta.FileInfo.VideoPath == "" || meta.FileInfo.SrtPath == "" {
		return fmt.Errorf("project %s has no uploaded source files", id)
	}
	if err := p.store.SaveProcessingResult(id, fromStep, statusProcessing, ""); err != nil {
		return err
	}

	stages := p.stages()
	for step := fromStep; step <= totalSteps; step++ {
		p.progress.Update(id, step, stepNames[step], entryProgress(step))
		if p.store.StepDone(id, step) {
			slog.Info("step already completed, skipping", "project", id, "step", step)
			p.progress.Update(id, step, stepNames[step], exitProgress(step))
			continue
		}
		slog.Info("running step", "project", id, "step", step, "name", stepNames[step])
		start := time.Now()
		if err := stages[step](ctx, id, meta); err != nil {
			observeStage(step, "error", start)
			serr := newStageError(step, err)
			if saveErr := p.store.SaveProcessingResult(id, step, statusError, serr.Error()); saveErr != nil {
				slog.Error("could not record failure", "project", id, "err", saveErr)
			}
			return serr
		}
		observeStage(step, "ok", start)
		if err := p.store.MarkStep(id, step, stepNames[step]); err != nil {
			return newStageError(step, err)
		}
		p.progress.Update(id, step, stepNames[step], exitProgress(step))
	}

	if err := p.writeFinalResults(id); err != nil {
		return newStageError(totalSteps, err)
	}
	return p.store.SaveProcessingResult(id, totalSteps, statusCompleted, "")
}

// entryProgress and exitProgress follow the fixed percent schedule of
// the six steps (16.7, 33.3, 50.0, 66.7, 83.3, 100).
func entryProgress(step int) float64 {
	return float64(step-1) / totalSteps * 100
}

func exitProgress(step int) float64 {
	return float64(step) / totalSteps * 100
}

func (p *Pipeline) writeFinalResults(id string) error {
	var clips []ClipMetadata
	if err := p.store.ReadOutput(id, clipsMetadataFile, &clips); err != nil {
		return fmt.Errorf("read clips metadata: %w", err)
	}
	var cols []CollectionMetadata
	if err := p.store.ReadOutput(id, collectionsMetadataFile, &cols); err != nil {
		return fmt.Errorf("read collections metadata: %w", err)
	}
	res := FinalResults{
		ProjectID:       id,
		Clips:           clips,
		Collections:     cols,
		ClipCount:       len(clips),
		CollectionCount: len(cols),
		FinishedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	return p.store.WriteOutput(id, finalResultsFile, res)
}
