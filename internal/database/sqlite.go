package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectSQLite opens a single-connection SQLite database, used for local runs and tests.
// Pass ":memory:" for a throwaway database.
//
// SQLite gives numeric(32,8) columns NUMERIC affinity, so money values round-trip
// through float64 here. That is exact for amounts with at most 8 decimal places
// and about 15 significant digits, which covers test and local use; it does not
// reproduce Postgres rounding of wider values.
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" a single database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
