package database

import (
	"context"
	"fmt"
	"io"

	"github.com/semmidev/dbkeep/internal/domain"
)

type MySQLDatabase struct {
	binary string
}

func NewMySQL(binary string) *MySQLDatabase {
	if binary == "" {
		binary = "mysqldump"
	}
	return &MySQLDatabase{binary: binary}
}

func (m *MySQLDatabase) Dump(ctx context.Context, conn domain.Connection, database string, w io.Writer) error {
	args := []string{
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		"--routines",
		"--triggers",
		"--events",
	}
	if conn.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", conn.Host))
	}
	if conn.Port != "" {
		args = append(args, fmt.Sprintf("--port=%s", conn.Port))
	}
	if conn.User != "" {
		args = append(args, fmt.Sprintf("--user=%s", conn.User))
	}
	args = append(args, database)

	var env []string
	if conn.Password != "" {
		env = append(env, fmt.Sprintf("MYSQL_PWD=%s", conn.Password))
	}

	return runDump(ctx, m.binary, args, env, w)
}

func (m *MySQLDatabase) GetType() domain.Engine {
	return domain.EngineMySQL
}
