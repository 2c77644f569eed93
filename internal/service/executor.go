package service

import (
	"context"
	"time"

	"github.com/raphaelgruber/altron-go/internal/models"
)

// Executor carries out a job. It should report progress in percent and
// return promptly once ctx is cancelled.
type Executor interface {
	Execute(ctx context.Context, job models.Job, progress func(percent int)) (models.JobResult, error)
}

// JobRunner is the text generation an LLMExecutor needs. *llm.Model
// satisfies it.
type JobRunner interface {
	RunJob(ctx context.Context, title, description string) (string, error)
}

// LLMExecutor hands the job's title and description to a language model.
type LLMExecutor struct {
	Runner JobRunner
}

// Execute implements Executor.
func (e LLMExecutor) Execute(ctx context.Context, job models.Job, progress func(int)) (models.JobResult, error) {
	progress(10)
	text, err := e.Runner.RunJob(ctx, job.Title, job.Description)
	if err != nil {
		return models.JobResult{}, err
	}
	progress(100)
	return models.JobResult{Text: text}, nil
}

// EchoExecutor completes each job with its description (or title when the
// description is empty) after Delay. Used when no LLM is configured.
type EchoExecutor struct {
	Delay time.Duration
}

// Execute implements Executor.
func (e EchoExecutor) Execute(ctx context.Context, job models.Job, progress func(int)) (models.JobResult, error) {
	if e.Delay > 0 {
		const steps = 4
		tick := time.NewTicker(max(e.Delay/steps, time.Millisecond))
		defer tick.Stop()
		for i := 1; i <= steps; i++ {
			select {
			case <-ctx.Done():
				return models.JobResult{}, ctx.Err()
			case <-tick.C:
				progress(i * 100 / steps)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return models.JobResult{}, err
	}

	text := job.Description
	if text == "" {
		text = job.Title
	}
	progress(100)
	return models.JobResult{Text: text}, nil
}
