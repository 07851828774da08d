package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Rows is the cursor returned by a Querier. pgx.Rows satisfies it directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Querier executes a single read query. The gym queries take one explicitly
// instead of reaching for a shared connection.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Dialect() Dialect
}

// Store wraps database access helpers. It is backed either by a pgx pool or by
// a database/sql handle for MySQL and SQLite.
type Store struct {
	pool    *pgxpool.Pool
	sqlDB   *sql.DB
	dialect Dialect
}

var _ Querier = (*Store)(nil)

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, dialect: Postgres}, nil
}

// Open creates a Store for the named driver: postgres, mysql or sqlite.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql", "pgx":
		return New(ctx, dsn)
	case "mysql":
		return openMySQL(ctx, dsn)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openMySQL(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	// DATETIME columns must come back as time.Time
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return &Store{sqlDB: sqlDB, dialect: MySQL}, nil
}

func openSQLite(ctx context.Context, dsn string) (*Store, error) {
	// store times in a sortable layout so last_scanned compares as text
	if !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") {
		// every connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &Store{sqlDB: sqlDB, dialect: SQLite}, nil
}

// Query runs sql with args and returns the resulting rows.
func (s *Store) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if s.pool != nil {
		return s.pool.Query(ctx, sql, args...)
	}
	rows, err := s.sqlDB.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

// Exec runs a statement that returns no rows. It is used to prepare local
// SQLite databases; the gym queries never write.
func (s *Store) Exec(ctx context.Context, sql string, args ...any) error {
	if s.pool != nil {
		_, err := s.pool.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, sql, args...)
	return err
}

// Dialect reports the SQL dialect of the underlying database.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.sqlDB.PingContext(ctx)
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.sqlDB != nil {
		s.sqlDB.Close()
	}
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	r.Rows.Close()
}
