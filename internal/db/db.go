package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"safemaint-backend/config"
	"safemaint-backend/internal/model"
)

// Models lists every table the remote backend serves.
var Models = []any{
	&model.WorkOrder{},
	&model.ARTTemplate{},
	&model.ScheduleItem{},
	&model.ActiveMaintenance{},
	&model.DocumentRecord{},
	&model.Employee{},
	&model.User{},
	&model.MaintenanceLog{},
	&model.PendingDemand{},
	&model.Notification{},
	&model.AvailabilityEntry{},
	&model.ChecklistTemplate{},
	&model.ChatMessage{},
	&model.PushSubscription{},
}

// InitRemote opens the hosted Postgres backend. The connection is not
// probed: the edge node must boot while the backend is unreachable.
func InitRemote(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates every backend table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// InitMirror opens the SQLite file holding the local mirror snapshots.
func InitMirror(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create mirror directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	return db, nil
}
