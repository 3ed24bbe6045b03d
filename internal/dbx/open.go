package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// NormalizeDriver maps user-facing driver names onto registered database/sql
// driver names.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3", "":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// Open opens and pings a database. SQLite connections are limited to one so
// that writers serialize instead of failing with SQLITE_BUSY.
func Open(driver, dsn string) (*sql.DB, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if name == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", name, err)
	}

	return db, nil
}

// GooseDialect returns the goose dialect for a driver name.
func GooseDialect(driver string) string {
	name, _ := NormalizeDriver(driver)
	if name == DriverPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// IsUniqueViolation reports whether err is a unique/primary-key constraint
// failure from either supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
