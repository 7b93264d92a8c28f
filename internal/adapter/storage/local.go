package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Logger receives the entries a directory walk had to skip.
type Logger interface {
	Warnf(template string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

type LocalStorage struct {
	dirMode  os.FileMode
	fileMode os.FileMode
	logger   Logger
}

type Option func(*LocalStorage)

func WithLogger(logger Logger) Option {
	return func(l *LocalStorage) { l.logger = logger }
}

func NewLocal(opts ...Option) *LocalStorage {
	l := &LocalStorage{dirMode: 0750, fileMode: 0640, logger: nopLogger{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Exists reports an error unless dir exists and is a directory.
func (l *LocalStorage) Exists(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup directory %s does not exist", dir)
		}
		return fmt.Errorf("failed to stat backup directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backup directory %s is not a directory", dir)
	}
	return nil
}

func (l *LocalStorage) CreateDir(dir string) error {
	if err := os.MkdirAll(dir, l.dirMode); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (l *LocalStorage) Create(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, l.fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create dest: %w", err)
	}
	return f, nil
}

// GetOldFiles walks root and returns every regular file ending in suffix
// whose modification time satisfies olderThan.
func (l *LocalStorage) GetOldFiles(ctx context.Context, root, suffix string, olderThan func(time.Time) bool) ([]string, error) {
	if err := l.Exists(root); err != nil {
		return nil, err
	}

	var oldFiles []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return l.skipUnreadable(root, path, d, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return l.skipUnreadable(root, path, d, err)
		}
		if info.Mode().IsRegular() && olderThan(info.ModTime()) {
			oldFiles = append(oldFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return oldFiles, nil
}

func (l *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// PruneEmptyDirs removes empty directories under root whose name starts with
// prefix. Deepest directories go first. Removal errors are skipped.
func (l *LocalStorage) PruneEmptyDirs(ctx context.Context, root, prefix string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return l.skipUnreadable(root, path, d, err)
		}
		if d.IsDir() && path != root && strings.HasPrefix(d.Name(), prefix) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	var removed []string
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed = append(removed, dir)
		}
	}
	return removed, nil
}

// skipUnreadable logs an entry the walk cannot read and moves past it, the
// way find(1) does. Only an unreadable root stops the walk.
func (l *LocalStorage) skipUnreadable(root, path string, d fs.DirEntry, err error) error {
	if path == root {
		return err
	}
	l.logger.Warnf("Skipping unreadable %s: %v", path, err)
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}
