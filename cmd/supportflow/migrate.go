package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/supportflow/supportflow/config"
	"github.com/supportflow/supportflow/internal/migration"
)

func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up":
		withMigrator(subargs, migrateUp)
	case "down":
		withMigrator(subargs, migrateDown)
	case "status":
		withMigrator(subargs, migrateStatus)
	case "version":
		withMigrator(subargs, migrateVersion)
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

func printMigrateUsage() {
	fmt.Println(`Database migration commands (postgres only; sqlite deployments
migrate automatically through the history store)

Usage:
  supportflow migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show per-migration status
  version   Show current migration version
  help      Show this help message

Options:
  --config <path>   Path to configuration file (YAML)

Examples:
  supportflow migrate up
  supportflow migrate up --config /etc/supportflow/config.yaml
  supportflow migrate status`)
}

// withMigrator builds a migrator from flags, runs fn, and exits
// non-zero on failure.
func withMigrator(args []string, fn func(context.Context, *migration.Migrator) error) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	migrator, err := migration.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := fn(ctx, migrator); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func migrateUp(ctx context.Context, m *migration.Migrator) error {
	if err := m.Up(ctx); err != nil {
		return err
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Migrations applied, current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func migrateDown(ctx context.Context, m *migration.Migrator) error {
	if err := m.Down(ctx); err != nil {
		return err
	}
	version, _, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Rolled back one migration, current version: %d\n", version)
	return nil
}

func migrateStatus(ctx context.Context, m *migration.Migrator) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-10s %-40s %s\n", "VERSION", "NAME", "APPLIED")
	for _, s := range statuses {
		applied := "no"
		if s.Applied {
			applied = "yes"
		}
		if s.Dirty {
			applied += " (dirty)"
		}
		fmt.Printf("%-10d %-40s %s\n", s.Version, s.Name, applied)
	}
	return nil
}

func migrateVersion(ctx context.Context, m *migration.Migrator) error {
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Println("No migrations applied")
		return nil
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}
