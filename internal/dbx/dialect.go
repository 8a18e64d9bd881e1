package dbx

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fastid/fastid/internal/filex"
)

// Dialect captures the differences between the SQL engines fastid can run on.
// Repository SQL is written once with $N placeholders.
type Dialect interface {
	// Name is the goose dialect name.
	Name() string
	// Rebind rewrites $N placeholders into the engine's native form.
	Rebind(query string) string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation(err error) bool
	// IsTransient reports whether err is safe to retry for a read.
	IsTransient(err error) bool
	// LockSuffix is appended to SELECTs that must lock the row they read.
	LockSuffix() string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open opens a database handle for the given driver and returns the matching
// dialect. SQLite handles are limited to a single connection so transactions
// are serialized by database/sql instead of failing with SQLITE_BUSY.
func Open(driverName, dsn string) (*sql.DB, Dialect, error) {
	switch strings.ToLower(driverName) {
	case DriverPostgres, "pgx":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("db open error: %w", err)
		}
		return db, Postgres{}, nil
	case DriverSQLite:
		if path := filex.SQLitePath(dsn); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, fmt.Errorf("db open error: %w", err)
			}
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("db open error: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, SQLite{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

// Postgres is the dialect of the pgx stdlib driver.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Rebind(query string) string { return query }

func (Postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (Postgres) IsTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

func (Postgres) LockSuffix() string { return " FOR UPDATE" }

// SQLite is the dialect of the modernc.org/sqlite driver.
type SQLite struct{}

var dollarParam = regexp.MustCompile(`\$(\d+)`)

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Rebind(query string) string {
	return dollarParam.ReplaceAllString(query, "?$1")
}

func (SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (SQLite) IsTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	primary := sqliteErr.Code() & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

// SQLite has no row locks; a write transaction already holds the database lock.
func (SQLite) LockSuffix() string { return "" }
