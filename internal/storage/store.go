package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite     = "sqlite3" // mattn/go-sqlite3, cgo
	DriverSQLitePure = "sqlite"  // modernc.org/sqlite
	DriverPostgres   = "pgx"
)

func init() {
	sqlx.BindDriver(DriverSQLitePure, sqlx.QUESTION)
}

type Storage struct {
	db     *sqlx.DB
	driver string
}

// New opens the database, applies migrations and returns a ready store.
// For the SQLite drivers dsn is a file path.
func New(driver, dsn string) (*Storage, error) {
	source, err := dataSource(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver != DriverPostgres {
		// SQLite allows one writer; serialize through a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func dataSource(driver, dsn string) (string, error) {
	switch driver {
	case DriverSQLite, DriverSQLitePure:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return "", fmt.Errorf("create db dir: %w", err)
			}
		}
		if driver == DriverSQLite {
			return dsn + "?_foreign_keys=on", nil
		}
		return dsn + "?_pragma=foreign_keys(1)&_time_format=sqlite", nil
	case DriverPostgres:
		return dsn, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database/sql driver name in use.
func (s *Storage) Driver() string {
	return s.driver
}

func (s *Storage) migrate() error {
	types := sqliteTypes
	if s.driver == DriverPostgres {
		types = postgresTypes
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(types.Replace(m)); err != nil {
			// Ignore re-applied column additions
			if !strings.Contains(err.Error(), "duplicate column") && !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func (s *Storage) insertReturningID(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// get scans one row into dest; found is false when no row matched.
func (s *Storage) get(ctx context.Context, dest any, query string, args ...any) (found bool, err error) {
	err = s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

func (s *Storage) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
