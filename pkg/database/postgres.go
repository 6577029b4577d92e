package database

import (
	"context"
	"fmt"
	"time"

	"SportMatchService/config"
	"SportMatchService/internal/models"
	"SportMatchService/pkg/resilience"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DSN собирает строку подключения к PostgreSQL
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// gormWriter направляет журнал GORM в zap
type gormWriter struct {
	sugar *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.sugar.Warnf(format, args...)
}

// NewPostgresDB подключается к PostgreSQL с повторными попытками и выполняет миграции
func NewPostgresDB(ctx context.Context, cfg config.PostgresConfig, rc config.ResilienceConfig, logger *zap.Logger) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		gormWriter{sugar: logger.Named("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var db *gorm.DB
	err := resilience.WithRetry(ctx, logger, "postgres_connect", startupRetryOptions(rc), func(ctx context.Context) error {
		conn, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{Logger: gormLog})
		if err != nil {
			return err
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}

		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Настройка пула соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("dbname", cfg.DBName))
	return db, nil
}

// Migrate создает таблицы пользователей и пар
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Match{})
}

func startupRetryOptions(rc config.ResilienceConfig) resilience.RetryOptions {
	options := resilience.DefaultRetryOptions()
	options.MaxRetries = rc.Startup.MaxRetries
	options.InitialBackoff = rc.Startup.InitialBackoff
	options.MaxBackoff = rc.Startup.MaxBackoff
	return options
}
