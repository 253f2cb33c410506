package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	// 纯 Go SQLite 驱动，注册为 "sqlite"
	_ "github.com/glebarez/go-sqlite"
)

// runs 表的迁移脚本，按方言分目录
//
//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// DefaultTableName 记录已应用版本的表
const DefaultTableName = "schema_migrations"

// =============================================================================
// 🗄️ 方言表
// =============================================================================

type dialect struct {
	// database/sql 驱动名
	sqlDriver string
	// migrationsFS 内的目录
	dir string
	// 单连接：SQLite 只允许一个写者
	singleConn bool
	instance   func(db *sql.DB, table string) (database.Driver, error)
}

var dialects = map[DatabaseType]dialect{
	DatabaseTypePostgres: {
		sqlDriver: "postgres",
		dir:       "migrations/postgres",
		instance: func(db *sql.DB, table string) (database.Driver, error) {
			return postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
		},
	},
	DatabaseTypeMySQL: {
		sqlDriver: "mysql",
		dir:       "migrations/mysql",
		instance: func(db *sql.DB, table string) (database.Driver, error) {
			return mysql.WithInstance(db, &mysql.Config{MigrationsTable: table})
		},
	},
	// golang-migrate 的 sqlite3 驱动只依赖 *sql.DB，连接走 glebarez 的纯 Go 实现
	DatabaseTypeSQLite: {
		sqlDriver:  "sqlite",
		dir:        "migrations/sqlite",
		singleConn: true,
		instance: func(db *sql.DB, table string) (database.Driver, error) {
			return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
		},
	},
}

func lookupDialect(dbType DatabaseType) (dialect, error) {
	d, ok := dialects[dbType]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database type: %s", dbType)
	}
	return d, nil
}

// =============================================================================
// 📋 Types
// =============================================================================

// MigrationStatus is one embedded migration and whether it is applied.
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo summarizes the schema state.
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config holds the configuration for the migrator
type Config struct {
	DatabaseType DatabaseType

	// DatabaseURL is the connection string, see BuildDatabaseURL.
	DatabaseURL string

	// TableName defaults to DefaultTableName.
	TableName string

	// LockTimeout defaults to 15s.
	LockTimeout time.Duration

	// Logger receives golang-migrate progress output (optional)
	Logger *zap.Logger
}

// Migrator is the set of operations exposed by `pageflow migrate`.
type Migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	DownAll(ctx context.Context) error
	// Steps applies (n>0) or rolls back (n<0) n migrations.
	Steps(ctx context.Context, n int) error
	Goto(ctx context.Context, version uint) error
	// Force records version as applied without running anything.
	Force(ctx context.Context, version int) error
	Version(ctx context.Context) (uint, bool, error)
	Status(ctx context.Context) ([]MigrationStatus, error)
	Info(ctx context.Context) (*MigrationInfo, error)
	Close() error
}

// =============================================================================
// 🔧 DefaultMigrator
// =============================================================================

// DefaultMigrator runs the embedded runs-table migrations through
// golang-migrate. It owns its database connection.
type DefaultMigrator struct {
	config  *Config
	dialect dialect
	migrate *migrate.Migrate
	logger  *zap.Logger
}

var _ Migrator = (*DefaultMigrator)(nil)

// NewMigrator opens the database and prepares golang-migrate.
func NewMigrator(cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	d, err := lookupDialect(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 15 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DefaultMigrator{
		config:  cfg,
		dialect: d,
		logger:  logger.With(zap.String("component", "migration"), zap.String("dialect", string(cfg.DatabaseType))),
	}

	m.migrate, err = m.open()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	m.migrate.LockTimeout = cfg.LockTimeout
	if cfg.Logger != nil {
		m.migrate.Log = &zapMigrateLogger{logger: m.logger}
	}
	return m, nil
}

func (m *DefaultMigrator) open() (*migrate.Migrate, error) {
	db, err := sql.Open(m.dialect.sqlDriver, m.config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if m.dialect.singleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := m.dialect.instance(db, m.config.TableName)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, m.dialect.dir)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("create source driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, string(m.config.DatabaseType), driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return nil, err
	}
	return mg, nil
}

// zapMigrateLogger 把 golang-migrate 的输出转到 zap
type zapMigrateLogger struct {
	logger *zap.Logger
}

func (l *zapMigrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *zapMigrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}

// apply runs fn, treating ErrNoChange as success. Cancelling ctx asks
// golang-migrate to stop after the migration in flight.
func (m *DefaultMigrator) apply(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			select {
			case m.migrate.GracefulStop <- true:
			default:
			}
		case <-stop:
		}
	}()

	start := time.Now()
	err := fn()
	close(stop)
	<-exited
	// 丢弃未被消费的停止信号，避免影响下一次操作
	select {
	case <-m.migrate.GracefulStop:
	default:
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("migrate %s: %w", op, ctxErr)
	}
	m.logger.Debug("migrate done", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *DefaultMigrator) Up(ctx context.Context) error {
	return m.apply(ctx, "up", m.migrate.Up)
}

// Down rolls back the last applied migration.
func (m *DefaultMigrator) Down(ctx context.Context) error {
	return m.apply(ctx, "down", func() error { return m.migrate.Steps(-1) })
}

func (m *DefaultMigrator) DownAll(ctx context.Context) error {
	return m.apply(ctx, "down-all", m.migrate.Down)
}

func (m *DefaultMigrator) Steps(ctx context.Context, n int) error {
	return m.apply(ctx, "steps", func() error { return m.migrate.Steps(n) })
}

func (m *DefaultMigrator) Goto(ctx context.Context, version uint) error {
	return m.apply(ctx, "goto", func() error { return m.migrate.Migrate(version) })
}

func (m *DefaultMigrator) Force(ctx context.Context, version int) error {
	return m.apply(ctx, "force", func() error { return m.migrate.Force(version) })
}

// Version returns the current version; 0 means nothing is applied.
func (m *DefaultMigrator) Version(ctx context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status lists every embedded migration against the current version.
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	available, err := availableMigrations(m.config.DatabaseType)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(available))
	for _, mig := range available {
		statuses = append(statuses, MigrationStatus{
			Version: mig.version,
			Name:    mig.name,
			Applied: mig.version <= current,
			Dirty:   dirty && mig.version == current,
		})
	}
	return statuses, nil
}

func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}

	info := &MigrationInfo{
		CurrentVersion:  current,
		Dirty:           dirty,
		TotalMigrations: len(statuses),
	}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info, nil
}

// Close releases the source and the database connection.
func (m *DefaultMigrator) Close() error {
	if m.migrate == nil {
		return nil
	}
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

// =============================================================================
// 📂 Embedded migrations
// =============================================================================

type migrationFile struct {
	version uint
	name    string
}

// availableMigrations walks the embedded source in version order. Names
// come from the file identifier, e.g. 000001_create_runs.up.sql → create_runs.
func availableMigrations(dbType DatabaseType) ([]migrationFile, error) {
	d, err := lookupDialect(dbType)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationsFS, d.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	defer src.Close()

	var out []migrationFile
	version, err := src.First()
	for err == nil {
		name, readErr := upIdentifier(src, version)
		if readErr != nil {
			return nil, readErr
		}
		out = append(out, migrationFile{version: version, name: name})
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	return out, nil
}

func upIdentifier(src source.Driver, version uint) (string, error) {
	r, name, err := src.ReadUp(version)
	if err != nil {
		return "", fmt.Errorf("read migration %d: %w", version, err)
	}
	_ = r.Close()
	return name, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// ParseDatabaseType parses a database type string
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// BuildDatabaseURL builds a golang-migrate connection string. For SQLite
// database is the file path.
func BuildDatabaseURL(dbType DatabaseType, host string, port int, database, username, password, sslMode string) string {
	switch dbType {
	case DatabaseTypePostgres:
		if sslMode == "" {
			sslMode = "require"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			username, password, host, port, database, sslMode)
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			username, password, host, port, database)
	case DatabaseTypeSQLite:
		return fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", database)
	default:
		return ""
	}
}
