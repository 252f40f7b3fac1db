package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fluxorio/orchestrator/pkg/core"
)

// Dialect selects the SQL dialect a Store was opened against.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store wraps the database/sql connection pool plus the dialect-specific
// DDL and placeholder style the CRUD files need.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
	logger  core.Logger
}

// Open connects to dsn, picking the driver from its scheme: "postgres://"
// or "" defaults to Postgres via pgx's stdlib adapter; "sqlite://" (or a
// bare file path, used by TEST_MODE) uses mattn/go-sqlite3.
func Open(dsn string, logger core.Logger) (*Store, error) {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	dialect := DialectPostgres
	driver := "pgx"
	connDSN := dsn

	if strings.HasPrefix(dsn, "sqlite://") {
		dialect = DialectSQLite
		driver = "sqlite3"
		connDSN = strings.TrimPrefix(dsn, "sqlite://")
	} else if strings.HasSuffix(dsn, ".db") || strings.HasPrefix(dsn, "file:") {
		dialect = DialectSQLite
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, connDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &Store{DB: db, Dialect: dialect, logger: logger}
	logger.Infof("store: connected (dialect=%s)", dialect)
	return s, nil
}

// OpenTestDB opens an isolated, in-memory SQLite database for TEST_MODE,
// named after TEST_DB_NAME so parallel test binaries don't collide.
func OpenTestDB(name string, logger core.Logger) (*Store, error) {
	if name == "" {
		name = "orchestrator_test"
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	return Open(dsn, logger)
}

// Migrate creates every table and index the orchestrator needs, idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.Dialect == DialectSQLite {
		schema = sqliteSchema
	}

	for _, stmt := range splitStatements(schema) {
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement: %s)", err, stmt)
		}
	}
	return nil
}

func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		out = append(out, strings.TrimSpace(stmt))
	}
	return out
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping verifies the connection is alive, used by health.SQLDBCheck.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
