package usecase

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/juju/clock/testclock"
	"github.com/semmidev/dbkeep/internal/adapter/compressor"
	"github.com/semmidev/dbkeep/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
}

func (e *eventLog) OnJobStart(job domain.JobDescriptor, _ domain.RunContext) { e.add("start:" + job.Name) }
func (e *eventLog) OnSweep(job string, _ SweepResult)                       { e.add("sweep:" + job) }
func (e *eventLog) OnBackup(o domain.BackupOutcome)                         { e.add("backup:" + o.Database) }
func (e *eventLog) OnJobDone(r domain.JobResult)                            { e.add("done:" + r.Job) }
func (e *eventLog) OnJobError(err *domain.JobError)                         { e.add("error:" + err.Job) }

func newTestRunner(store *recordingStore, dumper *fakeDumper, obs Observer, parallel int) *JobRunner {
	clk := testclock.NewClock(testNow)
	return NewJobRunner(
		store,
		NewSweeper(store, clk, nopLogger{}),
		NewBackup(store, compressor.NewGzip(gzip.DefaultCompression), clk, nopLogger{}),
		dumper.factory(),
		clk,
		nopLogger{},
		obs,
		parallel,
	)
}

func TestJobRunner(t *testing.T) {
	Convey("Given a JobRunner", t, func() {
		dir := t.TempDir()
		store := newRecordingStore()
		events := &eventLog{}
		ctx := context.Background()

		job := domain.JobDescriptor{
			Name:          "mydb",
			Databases:     []string{"a", "b", "c", "d"},
			OutputDir:     dir,
			SubdirPrefix:  "mydb",
			RetentionDays: 7,
		}

		Convey("When some databases fail", func() {
			dumper := newFakeDumper("b", "d")
			runner := newTestRunner(store, dumper, events, 1)

			outcomes, result, err := runner.Run(ctx, job, domain.RetentionNone)

			Convey("It should still attempt every database in order", func() {
				So(err, ShouldBeNil)
				So(dumper.Calls(), ShouldResemble, []string{"a", "b", "c", "d"})
				So(len(outcomes), ShouldEqual, 4)
				So(result.Attempted, ShouldEqual, 4)
				So(result.Succeeded, ShouldEqual, 2)

				var failed []string
				for _, o := range outcomes {
					if !o.Success {
						failed = append(failed, o.Database)
					}
				}
				So(failed, ShouldResemble, []string{"b", "d"})
			})

			Convey("It should emit events in state order", func() {
				So(events.events, ShouldResemble, []string{
					"start:mydb", "sweep:mydb",
					"backup:a", "backup:b", "backup:c", "backup:d",
					"done:mydb",
				})
			})
		})

		Convey("When expired artifacts exist", func() {
			old := filepath.Join(dir, "mydb_2024-03-01_000000", "a.2024-03-01_000000.sql.gz")
			So(writeAged(old, 14*day), ShouldBeNil)

			runner := newTestRunner(store, newFakeDumper(), events, 1)
			outcomes, result, err := runner.Run(ctx, job, domain.RetentionDaily)

			Convey("The sweep should finish before any artifact is written", func() {
				So(err, ShouldBeNil)
				So(result.Swept, ShouldEqual, 1)

				ops := store.Ops()
				So(ops[0], ShouldEqual, "delete:"+old)
				for _, op := range ops[1:] {
					So(strings.HasPrefix(op, "create:"), ShouldBeTrue)
				}
			})

			Convey("The new artifacts should survive the run", func() {
				for _, o := range outcomes {
					So(o.Success, ShouldBeTrue)
					So(filepath.Base(filepath.Dir(o.Path)), ShouldEqual, "mydb_2024-03-15_023000_daily")
					_, err := os.Stat(o.Path)
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When running the backups in parallel", func() {
			job.Databases = []string{"a", "b", "a", "c", "d", "e"}
			dumper := newFakeDumper("c")
			runner := newTestRunner(store, dumper, events, 3)

			outcomes, result, err := runner.Run(ctx, job, domain.RetentionNone)

			Convey("Outcomes should keep job order and failures stay isolated", func() {
				So(err, ShouldBeNil)
				So(len(dumper.Calls()), ShouldEqual, 6)
				So(result.Succeeded, ShouldEqual, 5)
				for i, o := range outcomes {
					So(o.Database, ShouldEqual, job.Databases[i])
					So(o.Success, ShouldEqual, o.Database != "c")
				}
			})
		})

		Convey("When a database is listed twice and its second backup fails", func() {
			job.Databases = []string{"a", "a"}
			dumper := newFakeDumper()
			dumper.failCall = 2
			runner := newTestRunner(store, dumper, events, 1)

			outcomes, _, err := runner.Run(ctx, job, domain.RetentionNone)

			Convey("The first artifact should stay intact at its own path", func() {
				So(err, ShouldBeNil)
				So(len(outcomes), ShouldEqual, 2)
				So(outcomes[0].Success, ShouldBeTrue)
				So(outcomes[1].Success, ShouldBeFalse)
				So(outcomes[1].Path, ShouldNotEqual, outcomes[0].Path)
				So(outcomes[1].Path, ShouldEndWith, ".2.sql.gz")

				f, err := os.Open(outcomes[0].Path)
				So(err, ShouldBeNil)
				defer f.Close()
				zr, err := gzip.NewReader(f)
				So(err, ShouldBeNil)
				content, err := io.ReadAll(zr)
				So(err, ShouldBeNil)
				So(string(content), ShouldStartWith, "-- dump of a")
			})
		})

		Convey("When the run is interrupted during a backup", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			job.Databases = []string{"a", "b", "c"}
			dumper := newFakeDumper()
			dumper.onCall = func(n int) {
				if n == 1 {
					cancel()
				}
			}
			runner := newTestRunner(store, dumper, events, 1)

			outcomes, result, err := runner.Run(cctx, job, domain.RetentionNone)

			Convey("The remaining databases should be skipped, not failed", func() {
				So(err, ShouldBeNil)
				So(dumper.Calls(), ShouldResemble, []string{"a"})
				So(len(outcomes), ShouldEqual, 1)
				So(outcomes[0].Success, ShouldBeTrue)
				So(result.Attempted, ShouldEqual, 1)
				So(result.Succeeded, ShouldEqual, 1)
				So(result.Skipped, ShouldEqual, 2)
			})
		})

		Convey("When the run is interrupted during parallel backups", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()

			job.Databases = []string{"a", "a", "a"}
			dumper := newFakeDumper()
			dumper.onCall = func(n int) {
				if n == 1 {
					cancel()
				}
			}
			runner := newTestRunner(store, dumper, events, 2)

			outcomes, result, err := runner.Run(cctx, job, domain.RetentionNone)

			Convey("Repeats queued in the same worker should not start", func() {
				So(err, ShouldBeNil)
				So(dumper.Calls(), ShouldResemble, []string{"a"})
				So(len(outcomes), ShouldEqual, 1)
				So(result.Skipped, ShouldEqual, 2)
			})
		})

		Convey("When the output directory is missing", func() {
			job.OutputDir = filepath.Join(dir, "missing")
			dumper := newFakeDumper()
			runner := newTestRunner(store, dumper, events, 1)

			outcomes, _, err := runner.Run(ctx, job, domain.RetentionNone)

			Convey("It should abandon the job with a JobError", func() {
				var jobErr *domain.JobError
				So(errors.As(err, &jobErr), ShouldBeTrue)
				So(jobErr.Job, ShouldEqual, "mydb")
				So(outcomes, ShouldBeNil)
				So(dumper.Calls(), ShouldBeEmpty)
				So(events.events, ShouldResemble, []string{"error:mydb"})
			})
		})

		Convey("When the engine is unsupported", func() {
			clk := testclock.NewClock(testNow)
			runner := NewJobRunner(store, NewSweeper(store, clk, nopLogger{}), nil,
				func(e domain.Engine) (domain.Dumper, error) { return nil, errors.New("unsupported database engine: " + string(e)) },
				clk, nopLogger{}, nil, 1)

			job.Engine = "oracle"
			_, _, err := runner.Run(ctx, job, domain.RetentionNone)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported database engine")
		})
	})
}
