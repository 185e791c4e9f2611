package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sql driver

	"github.com/supportflow/supportflow/config"
)

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

const migrationsDir = "migrations/postgres"

// Status describes one migration relative to the current version.
type Status struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// Info summarizes the current migration state.
type Info struct {
	CurrentVersion uint
	Dirty          bool
	Total          int
	Applied        int
	Pending        int
}

// Migrator applies versioned schema changes to the Postgres history
// backend.
type Migrator struct {
	db      *sql.DB
	migrate *migrate.Migrate
}

// New opens the configured Postgres database and prepares the
// embedded migrations. Only the postgres driver is supported here;
// sqlite deployments migrate through GORM.
func New(cfg config.DatabaseConfig) (*Migrator, error) {
	if cfg.Driver != "postgres" {
		return nil, fmt.Errorf("migrations require the postgres driver, got %q", cfg.Driver)
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	src, err := iofs.New(postgresFS, migrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{db: db, migrate: m}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the current version and whether the schema is dirty.
// A fresh database reports version 0.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	available, err := availableMigrations(postgresFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(available))
	for _, mig := range available {
		statuses = append(statuses, Status{
			Version: mig.version,
			Name:    mig.name,
			Applied: mig.version <= current,
			Dirty:   dirty && mig.version == current,
		})
	}
	return statuses, nil
}

// Info summarizes applied and pending counts.
func (m *Migrator) Info(ctx context.Context) (*Info, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	available, err := availableMigrations(postgresFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	applied := 0
	for _, mig := range available {
		if mig.version <= current {
			applied++
		}
	}
	return &Info{
		CurrentVersion: current,
		Dirty:          dirty,
		Total:          len(available),
		Applied:        applied,
		Pending:        len(available) - applied,
	}, nil
}

// Close releases the migration source and database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

type migrationFile struct {
	version uint
	name    string
}

// availableMigrations parses versioned up files (000001_name.up.sql)
// from the embedded filesystem, sorted ascending.
func availableMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []migrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			continue
		}

		migrations = append(migrations, migrationFile{
			version: uint(version),
			name:    strings.TrimSuffix(parts[1], ".up.sql"),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}
