package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mealcard/internal/config"
	"mealcard/internal/model"
)

const (
	connectAttempts = 10
	connectInterval = 2 * time.Second
)

// Open connects to the configured SQL database, retrying while it comes up,
// and applies pool settings.
func Open(ctx context.Context, cfg config.Database, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gormConfig := &gorm.Config{
		Logger:         newLogger(cfg.LogLevel),
		TranslateError: true,
	}

	var db *gorm.DB
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			err = ping(ctx, db)
		}
		if err == nil {
			break
		}
		if i == connectAttempts {
			return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Driver, connectAttempts, err)
		}
		log.Warn("database not ready, retrying",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", i),
			zap.Duration("retry_in", connectInterval),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectInterval):
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Migrate creates or updates all tables. With reset set, existing tables
// are dropped first.
func Migrate(db *gorm.DB, reset bool, log *zap.Logger) error {
	tables := []interface{}{
		&model.LedgerEntry{},
		&model.TopUpRequest{},
		&model.StagedItem{},
		&model.Card{},
		&model.Item{},
	}
	if reset {
		log.Warn("RESET_DB set, dropping all tables")
		for _, table := range tables {
			if err := db.Migrator().DropTable(table); err != nil {
				log.Warn("drop table failed (may not exist)", zap.Error(err))
			}
		}
	}
	// parents before children
	if err := db.AutoMigrate(
		&model.Item{},
		&model.Card{},
		&model.StagedItem{},
		&model.TopUpRequest{},
		&model.LedgerEntry{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.MySQLDSN), nil
	case "postgres":
		return postgres.Open(cfg.PostgresDSN), nil
	default:
		return nil, fmt.Errorf("no SQL dialect for driver %q", cfg.Driver)
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error
	}
	return logger.Default.LogMode(logLevel)
}
