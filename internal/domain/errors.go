package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrDumpTimeout = errors.New("dump timed out")

type Stage string

const (
	StageDump     Stage = "dump"
	StageCompress Stage = "compress"
	StageStorage  Stage = "storage"
)

// ValidationError is raised before any job executes.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// JobError means a job could not run at all.
type JobError struct {
	Job   string
	Cause error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Job, e.Cause)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// DumpError carries the exit status of a failed dump process.
type DumpError struct {
	Command  string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *DumpError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *DumpError) Unwrap() error {
	return e.Cause
}

// StageError tags a failure with the pipeline stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageDump
}
