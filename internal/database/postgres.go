package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"earnify-bot/internal/config"
	"earnify-bot/internal/models"
)

func ConnectPostgres(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Connect opens the database selected by cfg.DBDriver.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return ConnectPostgres(cfg, log)
	case "sqlite":
		db, err := ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to SQLite", zap.String("path", cfg.SQLitePath))
		return db, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.User{}, &models.Position{}, &models.InvestmentPlan{}, &models.Transaction{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
