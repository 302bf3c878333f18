package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConfig carries the connection settings a service resolved at
// startup (env, .env or Secrets Manager).
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
	// Attempts bounds how many times the connection is tried at startup.
	Attempts int
	Backoff  time.Duration
}

func (c PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	tz := c.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, port, sslMode, tz,
	)
}

// ConnectPostgres opens a gorm handle, retrying while the database comes up,
// and migrates the given models. The caller owns the handle and closes it
// with ClosePostgres.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig, log *zap.Logger, autoMigrateModels ...interface{}) (*gorm.DB, error) {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 10
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			if err = pingGorm(ctx, db); err == nil {
				log.Info("Connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
				if len(autoMigrateModels) > 0 {
					if err := db.WithContext(ctx).AutoMigrate(autoMigrateModels...); err != nil {
						_ = ClosePostgres(db)
						return nil, fmt.Errorf("AutoMigrate failed: %w", err)
					}
				}
				return db, nil
			}
			_ = ClosePostgres(db)
		}
		log.Warn("PostgreSQL connection failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

func pingGorm(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ClosePostgres closes the database connection gracefully
func ClosePostgres(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
