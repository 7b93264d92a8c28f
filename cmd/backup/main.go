// cmd/backup/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/dbkeep/internal/app"
	"github.com/semmidev/dbkeep/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	exitCode := app.ExitOK

	cmd := &cobra.Command{
		Use:   "dbkeep [flags] [job-name]",
		Short: "Back up the configured databases and expire old backups",
		Long: `dbkeep runs every job unit (*.conf) found in the config directory, or only
the named one. For each job it deletes *.sql.gz artifacts older than
KEEP_BACKUPS_DAYS, then dumps every database in DB_NAMES into
<BACKUP_DIR>/<BACKUP_SUBDIR_PREFIX>_<timestamp>[_<retention>]/.

Exit status:
  0  all backups succeeded
  1  one or more database backups failed
  2  invalid options or job configuration, nothing was run
  3  a job could not run (e.g. its backup directory is missing)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), args)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			summary, err := application.Run(ctx)
			exitCode = app.ExitCode(summary, err)
			return err
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitCode == app.ExitOK {
			exitCode = app.ExitInvalid
		}
	}
	return exitCode
}
