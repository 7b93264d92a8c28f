package domain

import (
	"fmt"
	"strings"
	"time"
)

type RetentionLabel string

const (
	RetentionNone    RetentionLabel = ""
	RetentionDaily   RetentionLabel = "daily"
	RetentionWeekly  RetentionLabel = "weekly"
	RetentionMonthly RetentionLabel = "monthly"
	RetentionYearly  RetentionLabel = "yearly"
)

var retentionLabels = []RetentionLabel{
	RetentionDaily,
	RetentionWeekly,
	RetentionMonthly,
	RetentionYearly,
}

// ParseRetentionLabel accepts an empty string as "no label".
func ParseRetentionLabel(s string) (RetentionLabel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RetentionNone, nil
	}
	for _, l := range retentionLabels {
		if string(l) == s {
			return l, nil
		}
	}
	return RetentionNone, NewValidationError(
		fmt.Sprintf("invalid retention policy %q (valid: %s)", s, strings.Join(RetentionLabelNames(), ", ")), nil)
}

func RetentionLabelNames() []string {
	names := make([]string, len(retentionLabels))
	for i, l := range retentionLabels {
		names[i] = string(l)
	}
	return names
}

type Engine string

const (
	EngineMySQL      Engine = "mysql"
	EnginePostgreSQL Engine = "postgresql"
)

type Connection struct {
	Host     string
	Port     string
	User     string
	Password string
}

// JobDescriptor is one configured unit of work. It is built once per run by
// the job source and never modified afterwards.
type JobDescriptor struct {
	Name          string
	Databases     []string
	Engine        Engine
	Connection    Connection
	OutputDir     string
	SubdirPrefix  string
	RetentionDays int
}

// RunContext holds the values captured when a job starts. Timestamp is used
// for the run directory and for every artifact of the job.
type RunContext struct {
	Timestamp time.Time
	RunDir    string
	Label     RetentionLabel
}
