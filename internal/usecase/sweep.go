package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/semmidev/dbkeep/internal/domain"
)

const day = 24 * time.Hour

type SweepResult struct {
	Deleted    []string
	Failed     []string
	PrunedDirs []string
}

// Sweeper deletes expired backup artifacts.
type Sweeper struct {
	store  domain.ArtifactStore
	clock  clock.Clock
	logger Logger
}

func NewSweeper(store domain.ArtifactStore, clk clock.Clock, logger Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Expired reports whether a file modified at mod is more than retentionDays
// whole days old at now. This matches find(1) -mtime +N.
func Expired(now, mod time.Time, retentionDays int) bool {
	age := now.Sub(mod)
	if age < 0 {
		return false
	}
	return int(age/day) > retentionDays
}

// Sweep removes every *.sql.gz file below dir older than retentionDays.
// A missing dir is an error. Failing to delete a single file is logged and
// recorded in the result.
func (uc *Sweeper) Sweep(ctx context.Context, dir string, retentionDays int) (SweepResult, error) {
	var result SweepResult

	if retentionDays < 0 {
		return result, fmt.Errorf("retention days must not be negative, got %d", retentionDays)
	}

	now := uc.clock.Now()
	uc.logger.Infof("Sweeping %s, retention: %d days", dir, retentionDays)

	files, err := uc.store.GetOldFiles(ctx, dir, ArtifactSuffix, func(mod time.Time) bool {
		return Expired(now, mod, retentionDays)
	})
	if err != nil {
		return result, fmt.Errorf("list expired artifacts: %w", err)
	}

	for _, path := range files {
		uc.logger.Infof("Deleting expired backup: %s", path)

		if err := uc.store.Delete(ctx, path); err != nil {
			uc.logger.Errorf("Failed to delete %s: %v", path, err)
			result.Failed = append(result.Failed, path)
		} else {
			result.Deleted = append(result.Deleted, path)
		}
	}

	uc.logger.Infof("Deleted %d expired backup(s) from %s", len(result.Deleted), dir)
	return result, nil
}

// PruneRunDirs removes run directories under dir emptied by a sweep.
func (uc *Sweeper) PruneRunDirs(ctx context.Context, dir, prefix string) []string {
	removed, err := uc.store.PruneEmptyDirs(ctx, dir, prefix+"_")
	if err != nil {
		uc.logger.Warnf("Could not prune empty run directories in %s: %v", dir, err)
		return nil
	}
	for _, d := range removed {
		uc.logger.Infof("Removed empty run directory: %s", d)
	}
	return removed
}
