package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // driver: sqlite
)

//go:embed migrations/*.sql
var migrations embed.FS

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Open opens a database/sql handle for the given driver and verifies it.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var name string
	switch driver {
	case DriverSQLite:
		name = "sqlite"
		if dsn == "" {
			dsn = "file:quiz-import.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		name = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	conn, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection keeps in-memory databases and pragmas consistent
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return conn, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(conn *sql.DB, driver Driver) error {
	return runGoose(conn, driver, func(conn *sql.DB) error { return goose.Up(conn, "migrations") })
}

// Rollback reverts the most recent migration.
func Rollback(conn *sql.DB, driver Driver) error {
	return runGoose(conn, driver, func(conn *sql.DB) error { return goose.Down(conn, "migrations") })
}

// Status prints migration status through goose's logger.
func Status(conn *sql.DB, driver Driver) error {
	return runGoose(conn, driver, func(conn *sql.DB) error { return goose.Status(conn, "migrations") })
}

func runGoose(conn *sql.DB, driver Driver, fn func(*sql.DB) error) error {
	dialect := "postgres"
	if driver == DriverSQLite {
		dialect = "sqlite3"
	}
	goose.SetBaseFS(migrations)
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := fn(conn); err != nil {
		return fmt.Errorf("goose: %w", err)
	}
	return nil
}
