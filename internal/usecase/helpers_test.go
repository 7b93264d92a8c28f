package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/semmidev/dbkeep/internal/adapter/storage"
	"github.com/semmidev/dbkeep/internal/domain"
)

var testNow = time.Date(2024, 3, 15, 2, 30, 0, 0, time.UTC)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// fakeDumper writes a small dump for every database except the ones listed
// in fail, which exit with status 2. failCall fails the n-th call (1-based)
// whatever the database, and onCall runs before each call.
type fakeDumper struct {
	mu       sync.Mutex
	fail     map[string]bool
	failCall int
	onCall   func(n int)
	calls    []string
}

func newFakeDumper(fail ...string) *fakeDumper {
	d := &fakeDumper{fail: make(map[string]bool)}
	for _, db := range fail {
		d.fail[db] = true
	}
	return d
}

func (d *fakeDumper) Dump(ctx context.Context, conn domain.Connection, database string, w io.Writer) error {
	d.mu.Lock()
	d.calls = append(d.calls, database)
	n := len(d.calls)
	d.mu.Unlock()

	if d.onCall != nil {
		d.onCall(n)
	}
	if d.fail[database] || n == d.failCall {
		fmt.Fprintf(w, "-- partial dump of %s\n", database)
		return &domain.DumpError{Command: "fakedump", ExitCode: 2, Stderr: "Unknown database"}
	}
	_, err := fmt.Fprintf(w, "-- dump of %s on %s\nCREATE TABLE t (id INT);\n", database, conn.Host)
	return err
}

func (d *fakeDumper) GetType() domain.Engine {
	return domain.EngineMySQL
}

func (d *fakeDumper) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *fakeDumper) factory() DumperFactory {
	return func(domain.Engine) (domain.Dumper, error) { return d, nil }
}

// recordingStore logs every create and delete in call order.
type recordingStore struct {
	*storage.LocalStorage
	mu  sync.Mutex
	ops []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{LocalStorage: storage.NewLocal()}
}

func (s *recordingStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
}

func (s *recordingStore) Create(path string) (io.WriteCloser, error) {
	s.record("create:" + path)
	return s.LocalStorage.Create(path)
}

func (s *recordingStore) Delete(ctx context.Context, path string) error {
	s.record("delete:" + path)
	return s.LocalStorage.Delete(ctx, path)
}

func (s *recordingStore) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ops))
	copy(out, s.ops)
	return out
}

// writeAged creates a file whose mtime is age before testNow.
func writeAged(path string, age time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		return err
	}
	mod := testNow.Add(-age)
	return os.Chtimes(path, mod, mod)
}

type staticSource struct {
	jobs []domain.JobDescriptor
}

func (s staticSource) Jobs() ([]domain.JobDescriptor, error) {
	return s.jobs, nil
}

func (s staticSource) Job(name string) (domain.JobDescriptor, error) {
	for _, j := range s.jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return domain.JobDescriptor{}, domain.NewValidationError(fmt.Sprintf("job %q not found", name), nil)
}
