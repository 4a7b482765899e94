package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StoreName identifies one of the two registry databases.
type StoreName string

const (
	StoreStaging StoreName = "staging"
	StoreMain    StoreName = "main"
)

var ErrUnknownStore = errors.New("unknown store")

// ParseStoreName maps a request value to a store. Empty means staging.
func ParseStoreName(s string) (StoreName, error) {
	switch StoreName(strings.ToLower(strings.TrimSpace(s))) {
	case "", StoreStaging:
		return StoreStaging, nil
	case StoreMain, "prod", "production":
		return StoreMain, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStore, s)
}

// Stores owns the staging and main database handles. It is created once by
// the process entry point and closed on shutdown.
type Stores struct {
	Staging *gorm.DB
	Main    *gorm.DB
}

// OpenStores opens and migrates both databases.
func OpenStores(stagingPath, mainPath string) (*Stores, error) {
	staging, err := Initialize(stagingPath)
	if err != nil {
		return nil, fmt.Errorf("staging store: %w", err)
	}
	main, err := Initialize(mainPath)
	if err != nil {
		closeDB(staging)
		return nil, fmt.Errorf("main store: %w", err)
	}
	return &Stores{Staging: staging, Main: main}, nil
}

// Get returns the handle for name.
func (s *Stores) Get(name StoreName) (*gorm.DB, error) {
	switch name {
	case StoreStaging:
		return s.Staging, nil
	case StoreMain:
		return s.Main, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStore, name)
}

// Close closes both handles and reports the first error.
func (s *Stores) Close() error {
	return errors.Join(closeDB(s.Staging), closeDB(s.Main))
}

// Initialize opens a SQLite file (or ":memory:") and runs migrations.
func Initialize(dbPath string) (*gorm.DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Open connects without migrating. Foreign keys are enforced and the pool is
// limited to one connection so every write goes through a single writer.
func Open(dbPath string) (*gorm.DB, error) {
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn += "&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate creates or updates the registry schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Case{},
		&Hearing{},
		&ImportLog{},
		&ImportFailure{},
	); err != nil {
		return err
	}
	return RunMigrations(db)
}

// Ping checks that the store can still be reached.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
