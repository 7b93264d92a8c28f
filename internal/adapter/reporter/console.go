package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/semmidev/dbkeep/internal/domain"
	"github.com/semmidev/dbkeep/internal/usecase"
)

// Console prints the human readable run report.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	ok  *color.Color
	bad *color.Color
	dim *color.Color
	hdr *color.Color
}

// NewConsole writes to w. Colors follow fatih/color's terminal detection
// unless noColor is set.
func NewConsole(w io.Writer, noColor bool) *Console {
	c := &Console{
		w:   w,
		ok:  color.New(color.FgGreen),
		bad: color.New(color.FgRed, color.Bold),
		dim: color.New(color.Faint),
		hdr: color.New(color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.ok, c.bad, c.dim, c.hdr} {
			col.DisableColor()
		}
	}
	return c
}

func (c *Console) OnJobStart(job domain.JobDescriptor, rc domain.RunContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hdr.Fprintf(c.w, "==> %s", job.Name)
	c.dim.Fprintf(c.w, " (%d database(s) -> %s)\n", len(job.Databases), rc.RunDir)
}

func (c *Console) OnSweep(job string, result usecase.SweepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dim.Fprintf(c.w, "    swept %d expired artifact(s)", len(result.Deleted))
	if len(result.Failed) > 0 {
		c.bad.Fprintf(c.w, ", %d could not be deleted", len(result.Failed))
	}
	fmt.Fprintln(c.w)
}

func (c *Console) OnBackup(o domain.BackupOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Success {
		c.ok.Fprint(c.w, "    ✓ ")
		fmt.Fprintf(c.w, "%s", o.Database)
		c.dim.Fprintf(c.w, " (%s, %s)\n", humanize.IBytes(uint64(o.Size)), o.Duration.Round(time.Millisecond))
		return
	}
	c.bad.Fprint(c.w, "    ✗ ")
	fmt.Fprintf(c.w, "%s", o.Database)
	c.dim.Fprintf(c.w, " [%s] %v\n", o.Stage, o.Cause)
}

func (c *Console) OnJobDone(r domain.JobResult) {
	if r.Skipped == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dim.Fprintf(c.w, "    interrupted, %d database(s) not started\n", r.Skipped)
}

func (c *Console) OnJobError(err *domain.JobError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bad.Fprintf(c.w, "==> %s could not run: %v\n", err.Job, err.Cause)
}

// Summary prints the final tally.
func (c *Console) Summary(summary *domain.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w)
	if summary.Success() {
		c.ok.Fprintln(c.w, "All backups completed successfully.")
		return
	}

	if jobErrs := summary.JobErrors(); len(jobErrs) > 0 {
		c.bad.Fprintf(c.w, "%d job(s) could not run:\n", len(jobErrs))
		for _, je := range jobErrs {
			fmt.Fprintf(c.w, "  - %s: %v\n", je.Job, je.Cause)
		}
	}

	if failures := summary.Failures(); len(failures) > 0 {
		c.bad.Fprintf(c.w, "%d backup(s) failed:\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(c.w, "  - %s [%s]: %v\n", f.ID(), f.Stage, f.Cause)
		}
	}
}

// Jobs lists the jobs a run would execute.
func (c *Console) Jobs(jobs []domain.JobDescriptor, label domain.RetentionLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range jobs {
		c.hdr.Fprintf(c.w, "%s", j.Name)
		fmt.Fprintf(c.w, ": %s -> %s/%s_<timestamp>", strings.Join(j.Databases, ", "), j.OutputDir, j.SubdirPrefix)
		if label != domain.RetentionNone {
			fmt.Fprintf(c.w, "_%s", label)
		}
		c.dim.Fprintf(c.w, " (keep %d days)\n", j.RetentionDays)
	}
}
