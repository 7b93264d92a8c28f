package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/semmidev/dbkeep/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Backup dumps one database through the compressor into an artifact file.
type Backup struct {
	store      domain.ArtifactStore
	compressor domain.Compressor
	clock      clock.Clock
	logger     Logger
	timeout    time.Duration
	verify     bool
}

type BackupOption func(*Backup)

// WithTimeout bounds each database dump. Zero disables the limit.
func WithTimeout(d time.Duration) BackupOption {
	return func(b *Backup) { b.timeout = d }
}

func WithVerify(verify bool) BackupOption {
	return func(b *Backup) { b.verify = verify }
}

func NewBackup(
	store domain.ArtifactStore,
	compressor domain.Compressor,
	clk clock.Clock,
	logger Logger,
	opts ...BackupOption,
) *Backup {
	b := &Backup{
		store:      store,
		compressor: compressor,
		clock:      clk,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute makes exactly one attempt. A partial artifact is left in place
// when it fails.
func (uc *Backup) Execute(
	ctx context.Context,
	job domain.JobDescriptor,
	dumper domain.Dumper,
	database string,
	dest string,
) domain.BackupOutcome {
	start := uc.clock.Now()
	id := job.Name + "." + database
	outcome := domain.BackupOutcome{
		Job:      job.Name,
		Database: database,
		Path:     dest,
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	uc.logger.Infof("[%s] Starting backup to: %s", id, dest)

	size, err := uc.dumpTo(ctx, dumper, job.Connection, database, dest)
	if err == nil && uc.verify {
		if verr := uc.compressor.Verify(dest); verr != nil {
			err = &domain.StageError{Stage: domain.StageCompress, Err: fmt.Errorf("verify artifact: %w", verr)}
		}
	}

	outcome.Duration = uc.clock.Now().Sub(start)
	outcome.Size = size

	if err != nil {
		outcome.Stage = domain.StageOf(err)
		var se *domain.StageError
		if errors.As(err, &se) {
			outcome.Cause = se.Err
		} else {
			outcome.Cause = err
		}
		uc.logger.Errorf("[%s] Backup failed at %s stage: %v", id, outcome.Stage, outcome.Cause)
		return outcome
	}

	outcome.Success = true
	uc.logger.Infof("[%s] Backup completed in %s, size: %.2f MB",
		id, outcome.Duration.Round(time.Millisecond), float64(size)/(1024*1024))
	return outcome
}

func (uc *Backup) dumpTo(
	ctx context.Context,
	dumper domain.Dumper,
	conn domain.Connection,
	database string,
	dest string,
) (int64, error) {
	file, err := uc.store.Create(dest)
	if err != nil {
		return 0, &domain.StageError{Stage: domain.StageStorage, Err: err}
	}

	fileWriter := &recordingWriter{w: file}
	zw, err := uc.compressor.NewWriter(fileWriter)
	if err != nil {
		file.Close()
		return 0, &domain.StageError{Stage: domain.StageCompress, Err: err}
	}
	compressWriter := &recordingWriter{w: zw}

	dumpErr := dumper.Dump(ctx, conn, database, compressWriter)
	if dumpErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(dumpErr, domain.ErrDumpTimeout) {
		dumpErr = &domain.DumpError{Command: string(dumper.GetType()), ExitCode: -1, Cause: domain.ErrDumpTimeout}
	}
	zipErr := zw.Close()
	fileErr := file.Close()

	switch {
	case fileWriter.err != nil:
		return fileWriter.n, &domain.StageError{Stage: domain.StageStorage, Err: fileWriter.err}
	case compressWriter.err != nil:
		return fileWriter.n, &domain.StageError{Stage: domain.StageCompress, Err: compressWriter.err}
	case dumpErr != nil:
		return fileWriter.n, &domain.StageError{Stage: domain.StageDump, Err: dumpErr}
	case zipErr != nil:
		return fileWriter.n, &domain.StageError{Stage: domain.StageCompress, Err: zipErr}
	case fileErr != nil:
		return fileWriter.n, &domain.StageError{Stage: domain.StageStorage, Err: fileErr}
	}

	return fileWriter.n, nil
}

// recordingWriter counts bytes and keeps the first write error so the
// failing stage can be told apart after the pipeline is torn down.
type recordingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	r.n += int64(n)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}
