package usecase

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/semmidev/dbkeep/internal/domain"
)

const (
	TimestampLayout = "2006-01-02_150405"
	ArtifactSuffix  = ".sql.gz"
)

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ArtifactName is <database>.<timestamp>.sql.gz.
func ArtifactName(database string, ts time.Time) string {
	return database + "." + FormatTimestamp(ts) + ArtifactSuffix
}

// RunDirName is <prefix>_<timestamp>[_<label>].
func RunDirName(prefix string, ts time.Time, label domain.RetentionLabel) string {
	name := prefix + "_" + FormatTimestamp(ts)
	if label != domain.RetentionNone {
		name += "_" + string(label)
	}
	return name
}

func NewRunContext(job domain.JobDescriptor, ts time.Time, label domain.RetentionLabel) domain.RunContext {
	return domain.RunContext{
		Timestamp: ts,
		RunDir:    filepath.Join(job.OutputDir, RunDirName(job.SubdirPrefix, ts, label)),
		Label:     label,
	}
}

// ArtifactPaths returns one destination per entry of databases. The k-th
// repeat of a name (k >= 2) is written as <database>.<timestamp>.<k>.sql.gz
// so it cannot overwrite an earlier artifact of the same run.
func ArtifactPaths(rc domain.RunContext, databases []string) []string {
	paths := make([]string, len(databases))
	seen := make(map[string]int, len(databases))
	for i, db := range databases {
		seen[db]++
		name := ArtifactName(db, rc.Timestamp)
		if k := seen[db]; k > 1 {
			name = fmt.Sprintf("%s.%s.%d%s", db, FormatTimestamp(rc.Timestamp), k, ArtifactSuffix)
		}
		paths[i] = filepath.Join(rc.RunDir, name)
	}
	return paths
}
