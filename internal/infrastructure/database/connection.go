package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrescamacho/fleetcore/internal/adapters/persistence"
	"github.com/andrescamacho/fleetcore/internal/infrastructure/config"
)

// NewConnection opens the state store described by the configuration
func NewConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		var dsn string
		if cfg.URL != "" {
			dsn = cfg.URL
		} else {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		}
		dialector = postgres.Open(dsn)

	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		dialector = sqlite.Open(path)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// Write-ahead logging keeps readers off the writers' backs; the
		// store is a shared coordination surface with many small writes.
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, fmt.Errorf("failed to enable WAL journaling: %w", err)
		}
	}

	if cfg.Type == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying db: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpen)
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdle)
		sqlDB.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every model
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&persistence.ShipNavModel{},
		&persistence.ShipFuelModel{},
		&persistence.ShipCargoModel{},
		&persistence.ShipCooldownModel{},
		&persistence.ShipRegistrationModel{},
		&persistence.ShipMountModel{},
		&persistence.WaypointModel{},
		&persistence.WaypointTraitModel{},
		&persistence.WaypointDistanceModel{},
		&persistence.TradeGoodSnapshotModel{},
		&persistence.TransactionModel{},
		&persistence.TradeModel{},
		&persistence.YieldModel{},
		&persistence.YieldSaleModel{},
		&persistence.ShipyardShipModel{},
		&persistence.ShipyardModuleModel{},
		&persistence.ShipLockModel{},
		&persistence.ShipRequestModel{},
		&persistence.ExcavatorGoodModel{},
		&persistence.RequestLogModel{},
	)
}

// NewTestConnection creates an in-memory SQLite store with the full schema
func NewTestConnection() (*gorm.DB, error) {
	cfg := &config.DatabaseConfig{
		Type: "sqlite",
		Path: ":memory:",
	}
	db, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate test database: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
