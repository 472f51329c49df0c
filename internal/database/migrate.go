package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations is the embedded schema, one file per version, named like
// "0001_init.sql".
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
  version    INT          NOT NULL,
  name       VARCHAR(255) NOT NULL,
  applied_at DATETIME     NOT NULL,
  PRIMARY KEY (version)
)`

// Migrator applies numbered SQL scripts that are newer than the highest
// version recorded in schema_migrations.
type Migrator struct {
	db  *sql.DB
	log *zap.Logger
}

func NewMigrator(db *sql.DB, log *zap.Logger) *Migrator {
	return &Migrator{db: db, log: log}
}

// Up applies every pending script of source in version order and returns
// how many were applied.  MySQL commits DDL implicitly, so a failing
// script may leave earlier statements of the same file applied; its
// version is only recorded once all statements succeeded.
func (m *Migrator) Up(ctx context.Context, source fs.FS) (int, error) {
	names, err := fs.Glob(source, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, n := range names {
		v, err := scriptVersion(n)
		if err != nil {
			return applied, err
		}
		if v <= current {
			continue
		}
		body, err := fs.ReadFile(source, n)
		if err != nil {
			return applied, err
		}
		m.log.Info("applying migration", zap.String("migration_name", n))
		for _, stmt := range splitStatements(string(body)) {
			if _, err := m.db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("migration %s: %w", n, err)
			}
		}
		if _, err := m.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?,?,?)",
			v, n, time.Now().UTC()); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", n, err)
		}
		current = v
		applied++
	}
	if applied == 0 {
		m.log.Info("schema up to date", zap.Int("version", current))
	}
	return applied, nil
}

// scriptVersion extracts the number of a file named like "0002_name.sql".
func scriptVersion(filename string) (int, error) {
	v, err := strconv.Atoi(strings.SplitN(filename, "_", 2)[0])
	if err != nil {
		return 0, fmt.Errorf("migration %q: name must start with a version number", filename)
	}
	return v, nil
}

// splitStatements splits a script on semicolons that end a line.  The
// scripts contain no procedures or string literals with ";\n".
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";\n") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";"))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
