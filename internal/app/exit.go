package app

import (
	"errors"

	"github.com/semmidev/dbkeep/internal/domain"
)

const (
	ExitOK           = 0
	ExitBackupFailed = 1
	ExitInvalid      = 2
	ExitJobFailed    = 3
)

// ExitCode maps the result of a run to the process exit status. A job that
// could not run outranks failed database backups.
func ExitCode(summary *domain.RunSummary, err error) int {
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ExitInvalid
		}
		return ExitJobFailed
	}
	if summary == nil {
		return ExitOK
	}
	if len(summary.JobErrors()) > 0 {
		return ExitJobFailed
	}
	if len(summary.Failures()) > 0 {
		return ExitBackupFailed
	}
	return ExitOK
}
