package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/dbkeep/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir = "/etc/dbkeep/conf.d"
	EnvPrefix        = "DBKEEP"
)

// Config holds the validated options of one invocation.
type Config struct {
	ConfigDir          string        `mapstructure:"config-dir"`
	Retention          string        `mapstructure:"retention"`
	Parallel           int           `mapstructure:"parallel"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Verify             bool          `mapstructure:"verify"`
	ContinueOnJobError bool          `mapstructure:"continue-on-job-error"`
	DryRun             bool          `mapstructure:"dry-run"`
	CompressionLevel   int           `mapstructure:"compression-level"`
	LogLevel           string        `mapstructure:"log-level"`
	LogFile            string        `mapstructure:"log-file"`
	MetricsFile        string        `mapstructure:"metrics-file"`
	TelegramToken      string        `mapstructure:"telegram-token"`
	TelegramChatID     string        `mapstructure:"telegram-chat-id"`

	// Set from the command line arguments, not from flags.
	JobName string                `mapstructure:"-"`
	Label   domain.RetentionLabel `mapstructure:"-"`
}

// RegisterFlags defines every option on fs. Each one can also be set through
// the environment as DBKEEP_<NAME>, with dashes turned into underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config-dir", "c", DefaultConfigDir, "directory holding the *.conf job units")
	fs.StringP("retention", "r", "", "retention policy label: "+strings.Join(domain.RetentionLabelNames(), ", "))
	fs.Int("parallel", 1, "number of databases of one job backed up concurrently")
	fs.Duration("timeout", 0, "per database dump timeout, 0 disables it")
	fs.Bool("verify", false, "read every new artifact back and check the gzip stream")
	fs.Bool("continue-on-job-error", false, "keep running the remaining jobs when one cannot run")
	fs.Bool("dry-run", false, "validate the configuration and list jobs without touching any file")
	fs.Int("compression-level", 6, "gzip compression level (1-9)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-file", "", "also write JSON logs to this file, rotated")
	fs.String("metrics-file", "", "write Prometheus metrics for the run to this file")
	fs.String("telegram-token", "", "telegram bot token used to send the run summary")
	fs.String("telegram-chat-id", "", "telegram chat receiving the run summary")
}

func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, domain.NewValidationError("bind flags", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewValidationError("failed to unmarshal options", err)
	}

	if len(args) > 1 {
		return nil, domain.NewValidationError(fmt.Sprintf("at most one job name may be given, got %d", len(args)), nil)
	}
	if len(args) == 1 {
		cfg.JobName = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	label, err := domain.ParseRetentionLabel(c.Retention)
	if err != nil {
		return err
	}
	c.Label = label

	if c.ConfigDir == "" {
		return domain.NewValidationError("config-dir is required", nil)
	}
	if c.Parallel < 1 {
		return domain.NewValidationError(fmt.Sprintf("parallel must be at least 1, got %d", c.Parallel), nil)
	}
	if c.Timeout < 0 {
		return domain.NewValidationError(fmt.Sprintf("timeout must not be negative, got %s", c.Timeout), nil)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 9 {
		return domain.NewValidationError(fmt.Sprintf("compression-level must be between 1 and 9, got %d", c.CompressionLevel), nil)
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == "") {
		return domain.NewValidationError("telegram-token and telegram-chat-id must be set together", nil)
	}
	if c.JobName != "" && !validJobName(c.JobName) {
		return domain.NewValidationError(fmt.Sprintf("invalid job name %q", c.JobName), nil)
	}

	return nil
}

func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

func validJobName(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}
