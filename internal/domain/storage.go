package domain

import (
	"context"
	"io"
	"time"
)

// ArtifactStore is the local directory tree holding backup artifacts.
type ArtifactStore interface {
	Exists(dir string) error
	CreateDir(dir string) error
	Create(path string) (io.WriteCloser, error)
	GetOldFiles(ctx context.Context, root, suffix string, olderThan func(time.Time) bool) ([]string, error)
	Delete(ctx context.Context, path string) error
	PruneEmptyDirs(ctx context.Context, root, prefix string) ([]string, error)
}
