// Package repository provides data access layer using GORM for database operations.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rowquest/rowquest-api/internal/apperrors"
	"github.com/rowquest/rowquest-api/internal/config"
	"github.com/rowquest/rowquest-api/internal/models"
	"github.com/rowquest/rowquest-api/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB holds the database connection.
type DB struct {
	*gorm.DB
}

// Open connects to the backend selected by the data mode: an in-memory SQLite database in mock
// mode, PostgreSQL in real mode. The schema is created before Open returns.
func Open(cfg *config.Config, log *logger.Logger) (*DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(log)),
	}

	if cfg.Data.IsMock() {
		db, err := openSQLite(gormConfig)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Using in-memory SQLite database (mock data mode)")
		return db, nil
	}

	db, err := openPostgres(&cfg.Database.Postgres, gormConfig, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Postgres.Migrate {
		if err := db.RunMigrations(log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// NewTestDB opens a private in-memory SQLite database with the full schema.
func NewTestDB() (*DB, error) {
	return openSQLite(&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
}

func openSQLite(gormConfig *gorm.Config) (*DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Each pooled connection would otherwise get its own empty in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is off)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	wrapped := &DB{db}
	if err := wrapped.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return wrapped, nil
}

func openPostgres(cfg *config.PostgresConfig, gormConfig *gorm.Config, log *logger.Logger) (*DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, apperrors.Remote("database.open", fmt.Errorf("failed to connect to database: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, apperrors.Remote("database.ping", fmt.Errorf("failed to ping database: %w", err))
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL")

	return &DB{db}, nil
}

func gormLogLevel(log *logger.Logger) gormlogger.LogLevel {
	if log.Level() <= zerolog.DebugLevel {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// AutoMigrate creates or updates tables for all models.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Activity{},
		&models.Waypoint{},
		&models.Badge{},
		&models.UserBadge{},
	)
}

// RunMigrations applies the embedded SQL migrations to a PostgreSQL database.
func (db *DB) RunMigrations(log *logger.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return apperrors.Remote("database.migrate", fmt.Errorf("failed to create migration driver: %w", err))
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.Remote("database.migrate", fmt.Errorf("failed to apply migrations: %w", err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Database migrations applied")
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database is healthy.
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

var errNotFound = gorm.ErrRecordNotFound

// classify tags a query error with NotFound or RemoteCallFailed.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.NotFound, op, err)
	}
	return apperrors.Remote(op, err)
}
