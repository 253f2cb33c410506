package main

import (
	"context"
	"fmt"
	"io"

	"github.com/BaSui01/pageflow/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles `pageflow migrate [flags] <subcommand> [arg]`
func runMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	configPath := addConfigFlag(fs)
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage:\n  pageflow migrate [--config F | --db-type T --db-url U] <subcommand>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, migration.Usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing subcommand", migration.ErrUnknownCommand)
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(stdout)
	return cli.Run(ctx, fs.Args())
}

// createMigrator creates a migrator from flags, falling back to the config file
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}

	logger := initLogger(cfg.Log)
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}
