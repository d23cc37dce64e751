// Package migrations wraps goose to apply and inspect the embedded schema
// sets of both storage backends. It takes no backup and runs no health
// check around a migration; backups are internal/backup's concern.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed sqlschema/*.sql
var sqliteFS embed.FS

//go:embed pgschema/*.sql
var postgresFS embed.FS

// Dialect selects which embedded migration set to run.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Manager applies and inspects goose migrations against either backend.
type Manager struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewManager constructs a Manager bound to an already-open *sql.DB.
func NewManager(db *sql.DB, dialect Dialect, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetLogger(gooseLogAdapter{logger})

	var gooseDialect string
	switch dialect {
	case DialectSQLite:
		gooseDialect = "sqlite3"
		goose.SetBaseFS(sqliteFS)
	case DialectPostgres:
		gooseDialect = "postgres"
		goose.SetBaseFS(postgresFS)
	default:
		return nil, fmt.Errorf("unknown migration dialect: %s", dialect)
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetTableName("_migrations")

	return &Manager{db: db, dialect: dialect, logger: logger}, nil
}

func (m *Manager) dir() string {
	if m.dialect == DialectSQLite {
		return "sqlschema"
	}
	return "pgschema"
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	return goose.UpContext(ctx, m.db, m.dir())
}

// UpTo applies migrations up to and including the given version.
func (m *Manager) UpTo(ctx context.Context, version int64) error {
	return goose.UpToContext(ctx, m.db, m.dir(), version)
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return goose.DownContext(ctx, m.db, m.dir())
}

// Status returns the applied/pending migration status as reported by goose.
func (m *Manager) Status(ctx context.Context) error {
	return goose.StatusContext(ctx, m.db, m.dir())
}

// Version returns the current applied migration version.
func (m *Manager) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db)
}

type gooseLogAdapter struct{ logger *slog.Logger }

func (g gooseLogAdapter) Fatalf(format string, args ...interface{}) {
	g.logger.Error(fmt.Sprintf(format, args...))
}

func (g gooseLogAdapter) Printf(format string, args ...interface{}) {
	g.logger.Info(fmt.Sprintf(format, args...))
}
