package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/semmidev/dbkeep/internal/domain"
)

// JobSource yields job descriptors. Errors from either method are treated
// as pre-run validation failures.
type JobSource interface {
	Jobs() ([]domain.JobDescriptor, error)
	Job(name string) (domain.JobDescriptor, error)
}

type RunOptions struct {
	// JobName restricts the run to one job when set.
	JobName string
	Label   domain.RetentionLabel
	// ContinueOnJobError keeps going with the remaining jobs after one
	// could not run. By default the run stops there.
	ContinueOnJobError bool
}

// Run drives the job runner over every job of the source.
type Run struct {
	source JobSource
	runner *JobRunner
	logger Logger
}

func NewRun(source JobSource, runner *JobRunner, logger Logger) *Run {
	return &Run{
		source: source,
		runner: runner,
		logger: logger,
	}
}

// Execute returns an error only when the run could not start, or was
// interrupted. Job and database failures are reported in the summary.
func (uc *Run) Execute(ctx context.Context, opts RunOptions) (*domain.RunSummary, error) {
	jobs, err := uc.resolveJobs(opts.JobName)
	if err != nil {
		return nil, err
	}

	summary := domain.NewRunSummary()
	uc.logger.Infof("Running %d job(s)", len(jobs))

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted before job %s: %w", job.Name, err)
		}

		outcomes, result, err := uc.runner.Run(ctx, job, opts.Label)
		if err != nil {
			var jobErr *domain.JobError
			if !errors.As(err, &jobErr) {
				jobErr = &domain.JobError{Job: job.Name, Cause: err}
			}
			summary.RecordJobError(jobErr)

			if !opts.ContinueOnJobError {
				if remaining := len(jobs) - i - 1; remaining > 0 {
					uc.logger.Errorf("Aborting run, %d job(s) not started", remaining)
				}
				break
			}
			continue
		}

		summary.RecordJob(result)
		for _, o := range outcomes {
			summary.Record(o)
		}

		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted during job %s: %w", job.Name, err)
		}
	}

	if summary.Success() {
		uc.logger.Infof("All backups completed successfully")
	} else {
		uc.logger.Warnf("Run finished with %d failed backup(s) and %d failed job(s)",
			len(summary.Failures()), len(summary.JobErrors()))
	}

	return summary, nil
}

func (uc *Run) resolveJobs(name string) ([]domain.JobDescriptor, error) {
	if name != "" {
		job, err := uc.source.Job(name)
		if err != nil {
			return nil, asValidation(err)
		}
		return []domain.JobDescriptor{job}, nil
	}

	jobs, err := uc.source.Jobs()
	if err != nil {
		return nil, asValidation(err)
	}
	if len(jobs) == 0 {
		return nil, domain.NewValidationError("no backup jobs configured", nil)
	}
	return jobs, nil
}

func asValidation(err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return domain.NewValidationError("load jobs", err)
}
