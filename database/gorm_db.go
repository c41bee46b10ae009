package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/sitephotosync/models"
)

// InitGormDB initializes and returns a GORM database instance. GORM's own
// log output goes through zap.
func InitGormDB(dataSourceName string, zlog *zap.Logger) (*gorm.DB, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	gormLogger := logger.New(
		zap.NewStdLog(zlog.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	zlog.Info("GORM database initialized successfully", zap.String("dsn", dataSourceName))
	return db, nil
}

// AutoMigrateModels creates or updates the upload and run tables.
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.PhotoUpload{},
		&models.Run{},
		&models.LocationOutcome{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}
