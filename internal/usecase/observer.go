package usecase

import "github.com/semmidev/dbkeep/internal/domain"

// Observer receives progress events. Implementations must be safe for
// concurrent use because OnBackup may be called from several workers.
type Observer interface {
	OnJobStart(job domain.JobDescriptor, rc domain.RunContext)
	OnSweep(job string, result SweepResult)
	OnBackup(outcome domain.BackupOutcome)
	OnJobDone(result domain.JobResult)
	OnJobError(err *domain.JobError)
}

type Observers []Observer

func (o Observers) OnJobStart(job domain.JobDescriptor, rc domain.RunContext) {
	for _, obs := range o {
		obs.OnJobStart(job, rc)
	}
}

func (o Observers) OnSweep(job string, result SweepResult) {
	for _, obs := range o {
		obs.OnSweep(job, result)
	}
}

func (o Observers) OnBackup(outcome domain.BackupOutcome) {
	for _, obs := range o {
		obs.OnBackup(outcome)
	}
}

func (o Observers) OnJobDone(result domain.JobResult) {
	for _, obs := range o {
		obs.OnJobDone(result)
	}
}

func (o Observers) OnJobError(err *domain.JobError) {
	for _, obs := range o {
		obs.OnJobError(err)
	}
}
