package database

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/semmidev/dbkeep/internal/domain"
)

// stderrLimit bounds how much of a failing dump's stderr is kept.
const stderrLimit = 4096

type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - stderrLimit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}

// runDump starts binary with args, streams its stdout into w and turns a
// failure into a *domain.DumpError carrying the exit status.
func runDump(ctx context.Context, binary string, args, env []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = w
	cmd.WaitDelay = 5 * time.Second

	var stderr tailBuffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	dumpErr := &domain.DumpError{
		Command:  binary,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Cause:    err,
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		dumpErr.Cause = domain.ErrDumpTimeout
		return dumpErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		dumpErr.ExitCode = exitErr.ExitCode()
	}
	return dumpErr
}
