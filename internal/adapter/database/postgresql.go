package database

import (
	"context"
	"fmt"
	"io"

	"github.com/semmidev/dbkeep/internal/domain"
)

type PostgreSQLDatabase struct {
	binary string
}

func NewPostgreSQL(binary string) *PostgreSQLDatabase {
	if binary == "" {
		binary = "pg_dump"
	}
	return &PostgreSQLDatabase{binary: binary}
}

// Dump writes a plain-format dump so the artifact stays a gzipped SQL file
// like the MySQL ones.
func (p *PostgreSQLDatabase) Dump(ctx context.Context, conn domain.Connection, database string, w io.Writer) error {
	args := []string{
		"--format=plain",
		"--no-password",
	}
	if conn.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", conn.Host))
	}
	if conn.Port != "" {
		args = append(args, fmt.Sprintf("--port=%s", conn.Port))
	}
	if conn.User != "" {
		args = append(args, fmt.Sprintf("--username=%s", conn.User))
	}
	args = append(args, database)

	var env []string
	if conn.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", conn.Password))
	}

	return runDump(ctx, p.binary, args, env, w)
}

func (p *PostgreSQLDatabase) GetType() domain.Engine {
	return domain.EnginePostgreSQL
}
