package domain

import (
	"fmt"
	"sync"
	"time"
)

type BackupOutcome struct {
	Job      string
	Database string
	Path     string
	Success  bool
	Stage    Stage
	Cause    error
	Size     int64
	Duration time.Duration
}

// Failure is one failed database backup.
type Failure struct {
	Job      string
	Database string
	Stage    Stage
	Cause    error
}

// ID returns the qualified identifier <job>.<database>.
func (f Failure) ID() string {
	return fmt.Sprintf("%s.%s", f.Job, f.Database)
}

type JobResult struct {
	Job       string
	Attempted int
	Succeeded int
	// Skipped counts databases not started because the run was interrupted.
	Skipped int
	Swept   int
}

// RunSummary accumulates results from every job of one run. It is safe for
// concurrent use and only ever appended to.
type RunSummary struct {
	mu        sync.Mutex
	failures  []Failure
	jobErrors []*JobError
	jobs      []JobResult
}

func NewRunSummary() *RunSummary {
	return &RunSummary{}
}

func (s *RunSummary) Record(o BackupOutcome) {
	if o.Success {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{
		Job:      o.Job,
		Database: o.Database,
		Stage:    o.Stage,
		Cause:    o.Cause,
	})
}

func (s *RunSummary) RecordJobError(err *JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobErrors = append(s.jobErrors, err)
}

func (s *RunSummary) RecordJob(r JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, r)
}

func (s *RunSummary) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}

func (s *RunSummary) FailedIDs() []string {
	failures := s.Failures()
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.ID()
	}
	return ids
}

func (s *RunSummary) JobErrors() []*JobError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*JobError, len(s.jobErrors))
	copy(out, s.jobErrors)
	return out
}

func (s *RunSummary) Jobs() []JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobResult, len(s.jobs))
	copy(out, s.jobs)
	return out
}

func (s *RunSummary) Success() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures) == 0 && len(s.jobErrors) == 0
}
