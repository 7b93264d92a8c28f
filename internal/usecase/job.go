package usecase

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/semmidev/dbkeep/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DumperFactory returns the dump capability for a database engine.
type DumperFactory func(engine domain.Engine) (domain.Dumper, error)

// Executor runs the backup of a single database.
type Executor interface {
	Execute(ctx context.Context, job domain.JobDescriptor, dumper domain.Dumper, database, dest string) domain.BackupOutcome
}

// JobRunner drives one job through validation, sweeping and one backup per
// database.
type JobRunner struct {
	store    domain.ArtifactStore
	sweeper  *Sweeper
	executor Executor
	dumpers  DumperFactory
	clock    clock.Clock
	logger   Logger
	observer Observer
	parallel int
}

func NewJobRunner(
	store domain.ArtifactStore,
	sweeper *Sweeper,
	executor Executor,
	dumpers DumperFactory,
	clk clock.Clock,
	logger Logger,
	observer Observer,
	parallel int,
) *JobRunner {
	if parallel < 1 {
		parallel = 1
	}
	if observer == nil {
		observer = Observers(nil)
	}
	return &JobRunner{
		store:    store,
		sweeper:  sweeper,
		executor: executor,
		dumpers:  dumpers,
		clock:    clk,
		logger:   logger,
		observer: observer,
		parallel: parallel,
	}
}

// Run returns the outcome of every attempted database in job order. A
// non-nil error is always a *domain.JobError and means no backup was
// attempted.
func (r *JobRunner) Run(ctx context.Context, job domain.JobDescriptor, label domain.RetentionLabel) ([]domain.BackupOutcome, domain.JobResult, error) {
	result := domain.JobResult{Job: job.Name}
	fail := func(format string, args ...interface{}) error {
		jobErr := &domain.JobError{Job: job.Name, Cause: fmt.Errorf(format, args...)}
		r.logger.Errorf("[%s] Job abandoned: %v", job.Name, jobErr.Cause)
		r.observer.OnJobError(jobErr)
		return jobErr
	}

	// Validating
	if err := r.store.Exists(job.OutputDir); err != nil {
		return nil, result, fail("validate output directory: %w", err)
	}
	dumper, err := r.dumpers(job.Engine)
	if err != nil {
		return nil, result, fail("resolve dumper: %w", err)
	}

	rc := NewRunContext(job, r.clock.Now(), label)
	r.logger.Infof("[%s] Starting job: %d database(s), run directory %s", job.Name, len(job.Databases), rc.RunDir)
	r.observer.OnJobStart(job, rc)

	// Sweeping, always finished before the run directory exists.
	sweep, err := r.sweeper.Sweep(ctx, job.OutputDir, job.RetentionDays)
	if err != nil {
		return nil, result, fail("sweep %s: %w", job.OutputDir, err)
	}
	sweep.PrunedDirs = r.sweeper.PruneRunDirs(ctx, job.OutputDir, job.SubdirPrefix)
	result.Swept = len(sweep.Deleted)
	r.observer.OnSweep(job.Name, sweep)

	if err := r.store.CreateDir(rc.RunDir); err != nil {
		return nil, result, fail("create run directory: %w", err)
	}

	// BackingUp
	outcomes, skipped := r.backupAll(ctx, job, dumper, rc)

	// Completed
	result.Attempted = len(outcomes)
	result.Skipped = skipped
	for _, o := range outcomes {
		if o.Success {
			result.Succeeded++
		}
	}
	if skipped > 0 {
		r.logger.Warnf("[%s] Run interrupted, %d database(s) not started", job.Name, skipped)
	}
	r.logger.Infof("[%s] Job completed: %d/%d backup(s) succeeded", job.Name, result.Succeeded, result.Attempted)
	r.observer.OnJobDone(result)

	return outcomes, result, nil
}

// backupAll returns the outcomes of the attempted databases in job order and
// the number of databases left unstarted because ctx was cancelled.
func (r *JobRunner) backupAll(ctx context.Context, job domain.JobDescriptor, dumper domain.Dumper, rc domain.RunContext) ([]domain.BackupOutcome, int) {
	paths := ArtifactPaths(rc, job.Databases)
	outcomes := make([]domain.BackupOutcome, len(job.Databases))
	attempted := make([]bool, len(job.Databases))

	run := func(i int) {
		if ctx.Err() != nil {
			return
		}
		attempted[i] = true
		outcomes[i] = r.executor.Execute(ctx, job, dumper, job.Databases[i], paths[i])
		r.observer.OnBackup(outcomes[i])
	}

	if r.parallel == 1 {
		for i := range job.Databases {
			run(i)
		}
		return collect(outcomes, attempted)
	}

	// Repeats of a database share one worker and run in order, so the same
	// database is never dumped twice at once.
	var groups [][]int
	seen := make(map[string]int)
	for i, db := range job.Databases {
		if g, ok := seen[db]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		seen[db] = len(groups)
		groups = append(groups, []int{i})
	}

	// Workers never return an error, so one failure cannot cancel siblings.
	var g errgroup.Group
	g.SetLimit(r.parallel)
	for _, group := range groups {
		g.Go(func() error {
			for _, i := range group {
				run(i)
			}
			return nil
		})
	}
	_ = g.Wait()

	return collect(outcomes, attempted)
}

func collect(outcomes []domain.BackupOutcome, attempted []bool) ([]domain.BackupOutcome, int) {
	kept := make([]domain.BackupOutcome, 0, len(outcomes))
	skipped := 0
	for i, o := range outcomes {
		if !attempted[i] {
			skipped++
			continue
		}
		kept = append(kept, o)
	}
	return kept, skipped
}
