package client

import (
	"fmt"
	"time"

	"payment-relay/internal/config"
	"payment-relay/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens the SQL store backing the reconciliation ledger and migrates it.
func InitDatabase(cfg *config.Idempotency) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Store {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	case "mysql":
		dialector = mysql.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("store %q is not a sql store", cfg.Store)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Store, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// webhook bursts and polls share this pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if cfg.Store == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.ReconciliationClaim{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}
