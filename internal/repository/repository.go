package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Credentials struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	// SQLitePath is a file path or ":memory:".
	SQLitePath string
	// MigrationsDirPath holds one subdirectory per driver.
	MigrationsDirPath string
}

// Repository is the relational backend: products with their stock, orders and
// order lines. Queries are written to run unchanged on postgres and sqlite.
type Repository struct {
	db     *sql.DB
	driver string
}

func NewRepository(cred *Credentials) (*Repository, error) {
	switch cred.Driver {
	case DriverPostgres, "":
		return openPostgres(cred)
	case DriverSQLite:
		return openSQLite(cred)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cred.Driver)
	}
}

func openPostgres(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db, driver: DriverPostgres}, nil
}

func openSQLite(cred *Credentials) (*Repository, error) {
	path := cred.SQLitePath
	if path == "" {
		path = ":memory:"
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one connection: an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)
	return &Repository{db: db, driver: DriverSQLite}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", filepath.Join(cred.MigrationsDirPath, r.driver)),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Driver() string {
	return r.driver
}

func (r *Repository) Close() error {
	return r.db.Close()
}
