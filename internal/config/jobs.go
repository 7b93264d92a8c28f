package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/semmidev/dbkeep/internal/domain"
	"github.com/spf13/viper"
)

const UnitExt = ".conf"

// unitFile mirrors the keys of a job unit. Viper lowercases keys on read.
type unitFile struct {
	DBNames            string `mapstructure:"db_names"`
	DBEngine           string `mapstructure:"db_engine"`
	DBHost             string `mapstructure:"db_host"`
	DBPort             string `mapstructure:"db_port"`
	DBUser             string `mapstructure:"db_user"`
	DBPassword         string `mapstructure:"db_password"`
	BackupDir          string `mapstructure:"backup_dir"`
	BackupSubdirPrefix string `mapstructure:"backup_subdir_prefix"`
	KeepBackupsDays    string `mapstructure:"keep_backups_days"`
}

type jobSpec struct {
	Name          string   `validate:"required"`
	Databases     []string `validate:"min=1,dive,required,excludesall=/"`
	Engine        string   `validate:"omitempty,oneof=mysql postgresql"`
	Port          string   `validate:"omitempty,numeric"`
	OutputDir     string   `validate:"required"`
	SubdirPrefix  string   `validate:"required,excludesall=/"`
	RetentionDays int      `validate:"gte=0"`
}

var requiredKeys = []string{"db_names", "backup_dir", "backup_subdir_prefix", "keep_backups_days"}

// DirSource reads one job per *.conf unit in a directory. Units are parsed
// as KEY=VALUE declarations and never executed.
type DirSource struct {
	dir      string
	validate *validator.Validate
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{
		dir:      dir,
		validate: validator.New(),
	}
}

// Jobs loads every unit in name order. Any malformed unit fails the whole
// load.
func (s *DirSource) Jobs() ([]domain.JobDescriptor, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("read config directory %s", s.dir), err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != UnitExt {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]domain.JobDescriptor, 0, len(names))
	for _, name := range names {
		job, err := s.load(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *DirSource) Job(name string) (domain.JobDescriptor, error) {
	path := filepath.Join(s.dir, name+UnitExt)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.JobDescriptor{}, domain.NewValidationError(
				fmt.Sprintf("job %q not found: no %s in %s", name, name+UnitExt, s.dir), nil)
		}
		return domain.JobDescriptor{}, domain.NewValidationError(fmt.Sprintf("stat %s", path), err)
	}
	return s.load(path)
}

func (s *DirSource) load(path string) (domain.JobDescriptor, error) {
	name := strings.TrimSuffix(filepath.Base(path), UnitExt)
	job, err := LoadUnit(path, s.validate)
	if err != nil {
		return domain.JobDescriptor{}, domain.NewValidationError(fmt.Sprintf("job %s (%s)", name, path), err)
	}
	return job, nil
}

// LoadUnit parses a single unit file into a job descriptor named after the
// file.
func LoadUnit(path string, validate *validator.Validate) (domain.JobDescriptor, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("failed to read unit: %w", err)
	}

	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return domain.JobDescriptor{}, fmt.Errorf("missing required key(s): %s", strings.Join(missing, ", "))
	}

	var unit unitFile
	if err := v.UnmarshalExact(&unit); err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("failed to unmarshal unit: %w", err)
	}

	days, err := strconv.Atoi(strings.TrimSpace(unit.KeepBackupsDays))
	if err != nil {
		return domain.JobDescriptor{}, fmt.Errorf("KEEP_BACKUPS_DAYS must be an integer, got %q", unit.KeepBackupsDays)
	}

	spec := jobSpec{
		Name:          strings.TrimSuffix(filepath.Base(path), UnitExt),
		Databases:     SplitNames(unit.DBNames),
		Engine:        strings.ToLower(strings.TrimSpace(unit.DBEngine)),
		Port:          strings.TrimSpace(unit.DBPort),
		OutputDir:     strings.TrimSpace(unit.BackupDir),
		SubdirPrefix:  strings.TrimSpace(unit.BackupSubdirPrefix),
		RetentionDays: days,
	}
	if err := validate.Struct(spec); err != nil {
		return domain.JobDescriptor{}, describeValidation(err)
	}

	return domain.JobDescriptor{
		Name:      spec.Name,
		Databases: spec.Databases,
		Engine:    domain.Engine(spec.Engine),
		Connection: domain.Connection{
			Host:     strings.TrimSpace(unit.DBHost),
			Port:     spec.Port,
			User:     unit.DBUser,
			Password: unit.DBPassword,
		},
		OutputDir:     filepath.Clean(spec.OutputDir),
		SubdirPrefix:  spec.SubdirPrefix,
		RetentionDays: spec.RetentionDays,
	}, nil
}

// SplitNames turns a DB_NAMES value into its ordered names. Names may be
// separated by whitespace or commas, and a shell array's surrounding
// parentheses are ignored.
func SplitNames(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		if f != "" {
			names = append(names, f)
		}
	}
	return names
}

var unitKeys = map[string]string{
	"Databases":     "DB_NAMES",
	"Engine":        "DB_ENGINE",
	"Port":          "DB_PORT",
	"OutputDir":     "BACKUP_DIR",
	"SubdirPrefix":  "BACKUP_SUBDIR_PREFIX",
	"RetentionDays": "KEEP_BACKUPS_DAYS",
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.StructField()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		key, ok := unitKeys[field]
		if !ok {
			key = field
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on the '%s' rule", key, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
