package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/semmidev/dbkeep/internal/adapter/compressor"
	"github.com/semmidev/dbkeep/internal/adapter/database"
	"github.com/semmidev/dbkeep/internal/adapter/notifier"
	"github.com/semmidev/dbkeep/internal/adapter/reporter"
	"github.com/semmidev/dbkeep/internal/adapter/storage"
	"github.com/semmidev/dbkeep/internal/config"
	"github.com/semmidev/dbkeep/internal/domain"
	"github.com/semmidev/dbkeep/internal/infrastructure/logger"
	"github.com/semmidev/dbkeep/internal/infrastructure/metrics"
	"github.com/semmidev/dbkeep/internal/usecase"
)

type Notifier interface {
	Notify(ctx context.Context, summary *domain.RunSummary) error
}

type App struct {
	config   *config.Config
	logger   *logger.Logger
	clock    clock.Clock
	source   *config.DirSource
	console  *reporter.Console
	metrics  *metrics.Metrics
	notifier Notifier
	run      *usecase.Run
}

type options struct {
	dumpers usecase.DumperFactory
	clock   clock.Clock
	stdout  io.Writer
	logger  *logger.Logger
	noColor bool
}

type Option func(*options)

// WithDumpers replaces the mysqldump/pg_dump based dumpers.
func WithDumpers(f usecase.DumperFactory) Option {
	return func(o *options) { o.dumpers = f }
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithOutput sends the run report to w without colors.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.stdout = w
		o.noColor = true
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{
		dumpers: database.New,
		clock:   clock.WallClock,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		var err error
		log, err = logger.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	log = log.With("run_id", uuid.NewString())

	a := &App{
		config:  cfg,
		logger:  log,
		clock:   o.clock,
		source:  config.NewDirSource(cfg.ConfigDir),
		console: reporter.NewConsole(o.stdout, o.noColor),
	}

	observers := usecase.Observers{a.console}
	if cfg.MetricsFile != "" {
		a.metrics = metrics.New()
		observers = append(observers, a.metrics)
	}

	if cfg.NotifyEnabled() {
		host, _ := os.Hostname()
		tg, err := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, host)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			a.notifier = tg
			log.Infof("✓ Telegram notification enabled")
		}
	}

	store := storage.NewLocal(storage.WithLogger(log))
	comp := compressor.NewGzip(cfg.CompressionLevel)

	executor := usecase.NewBackup(store, comp, o.clock, log,
		usecase.WithTimeout(cfg.Timeout),
		usecase.WithVerify(cfg.Verify),
	)
	runner := usecase.NewJobRunner(
		store,
		usecase.NewSweeper(store, o.clock, log),
		executor,
		o.dumpers,
		o.clock,
		log,
		observers,
		cfg.Parallel,
	)
	a.run = usecase.NewRun(a.source, runner, log)

	return a, nil
}

// Run executes the configured jobs. The returned summary is nil when the run
// could not start.
func (a *App) Run(ctx context.Context) (*domain.RunSummary, error) {
	if a.config.DryRun {
		return a.dryRun()
	}

	a.logger.Infof("Starting backup run, config directory: %s", a.config.ConfigDir)

	summary, err := a.run.Execute(ctx, usecase.RunOptions{
		JobName:            a.config.JobName,
		Label:              a.config.Label,
		ContinueOnJobError: a.config.ContinueOnJobError,
	})
	if summary == nil {
		return nil, err
	}

	a.console.Summary(summary)
	a.publish(ctx, summary)

	return summary, err
}

func (a *App) dryRun() (*domain.RunSummary, error) {
	var jobs []domain.JobDescriptor
	if a.config.JobName != "" {
		job, err := a.source.Job(a.config.JobName)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	} else {
		var err error
		if jobs, err = a.source.Jobs(); err != nil {
			return nil, err
		}
	}

	a.console.Jobs(jobs, a.config.Label)
	a.logger.Infof("Dry run: %d job(s) valid, nothing written", len(jobs))
	return domain.NewRunSummary(), nil
}

func (a *App) publish(ctx context.Context, summary *domain.RunSummary) {
	if a.metrics != nil {
		a.metrics.Finish(summary, a.clock.Now())
		if err := a.metrics.WriteFile(a.config.MetricsFile); err != nil {
			a.logger.Errorf("Failed to write metrics: %v", err)
		}
	}

	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, summary); err != nil {
			a.logger.Errorf("Failed to send notification: %v", err)
		}
	}
}

func (a *App) Shutdown() {
	a.logger.Close()
}
