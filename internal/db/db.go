package db

import (
	"context"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	"github.com/mnuddindev/otakushelf/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	DBInstance *gorm.DB
	Once       sync.Once
	DBMu       sync.Mutex
)

type DBOptions func(*gorm.DB) error

// Dialector picks the GORM driver from the DSN scheme. "sqlite://" (or a bare
// file path) selects sqlite; "postgres://", "postgresql://" or a key=value DSN
// selects postgres.
func Dialector(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), false
	default:
		return sqlite.Open(dsn), true
	}
}

// Open connects, applies opts and migrates models. Every call returns a new handle.
func Open(ctx context.Context, dsn string, models []interface{}, opts ...DBOptions) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "DB initialization canceled")
	}

	dialector, isSQLite := Dialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "Failed to connect to Database")
	}

	if isSQLite {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, utils.WrapError(err, fiber.StatusInternalServerError, "Failed to get DB handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	for _, opt := range opts {
		if err := opt(db); err != nil {
			return nil, utils.WrapError(err, fiber.StatusInternalServerError, "Failed to apply DB Options")
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return nil, utils.WrapError(err, fiber.StatusInternalServerError, "Failed to Migrate models")
	}

	return db, nil
}

// NewDB opens the process-wide connection once.
func NewDB(ctx context.Context, dsn string, models []interface{}, opts ...DBOptions) (*gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var InitErr error
	Once.Do(func() {
		db, err := Open(ctx, dsn, models, opts...)
		if err != nil {
			InitErr = err
			return
		}
		DBMu.Lock()
		DBInstance = db
		DBMu.Unlock()
	})

	if InitErr != nil {
		return nil, InitErr
	}

	DBMu.Lock()
	defer DBMu.Unlock()
	if DBInstance == nil {
		return nil, utils.NewError(fiber.StatusInternalServerError, "Database not initialized")
	}
	return DBInstance, nil
}

// Ping checks the connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func CloseDB(logger *logger.Logger) error {
	DBMu.Lock()
	defer DBMu.Unlock()

	if DBInstance == nil {
		return nil
	}

	sqlDB, err := DBInstance.DB()
	if err != nil {
		logger.Error(context.Background()).WithFields("error", err).Logs("Failed to get DB handle for closing")
		return utils.NewInternalError("Failed to close database", err)
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error(context.Background()).WithFields("error", err).Logs("Database close failed")
		return utils.NewInternalError("Failed to close database", err)
	}
	logger.Info(context.Background()).Logs("Database connection closed successfully")
	DBInstance = nil
	return nil
}
