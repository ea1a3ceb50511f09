package database

import (
	"embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect names as reported by DialectOf.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Open connects to the database named by url and runs migrations.
// A postgres:// or postgresql:// URL selects PostgreSQL through pgx;
// anything else is treated as a SQLite file path (":memory:" included).
func Open(url string) (*sqlx.DB, error) {
	driver, dsn, dialect := resolve(url)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if url == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func resolve(url string) (driver, dsn, dialect string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "pgx", url, DialectPostgres
	}
	if url == ":memory:" {
		return "sqlite", "file::memory:?" + sqlitePragmas, DialectSQLite
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return "sqlite", url + sep + sqlitePragmas, DialectSQLite
}

// DialectOf reports which schema dialect db was opened with.
func DialectOf(db *sqlx.DB) string {
	if db.DriverName() == "pgx" {
		return DialectPostgres
	}
	return DialectSQLite
}

func runMigrations(db *sqlx.DB, dialect string) error {
	goose.SetBaseFS(migrations)

	gooseDialect := "sqlite3"
	if dialect == DialectPostgres {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations/"+dialect); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
