package db

import (
	"time"

	"github.com/mnuddindev/otakushelf/pkg/logger"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// WithLogger routes GORM's own logging through the application logger.
func WithLogger(log *logger.Logger, level gormLogger.LogLevel) DBOptions {
	return func(db *gorm.DB) error {
		db.Config.Logger = gormLogger.New(
			log,
			gormLogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
		return nil
	}
}

// WithPool sizes the connection pool. It is ignored for sqlite, which is pinned to one connection.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) DBOptions {
	return func(db *gorm.DB) error {
		if db.Dialector.Name() == "sqlite" {
			return nil
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxIdle)
		sqlDB.SetConnMaxLifetime(lifetime)
		return nil
	}
}
