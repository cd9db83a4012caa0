package weatherstore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Open opens (or creates) the on-disk SQLite database at path and brings
// the schema up to date.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; funnel everything through one
	// connection so gorm never trips over a locked database file.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate applies the schema additively. New columns (humidity, pressure,
// wind fields were late additions) are added in place without touching
// existing rows. If the weather table cannot be migrated additively it is
// dropped and rebuilt: forecast rows are a cache and will be refetched on
// the next sync. The locations table is never dropped here because the
// setting column is a durable key.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Location{}); err != nil {
		return fmt.Errorf("migrate locations: %w", err)
	}

	if err := db.AutoMigrate(&WeatherRecord{}); err != nil {
		if dropErr := db.Migrator().DropTable(&WeatherRecord{}); dropErr != nil {
			return fmt.Errorf("migrate weather_records: %w", err)
		}
		if err := db.AutoMigrate(&WeatherRecord{}); err != nil {
			return fmt.Errorf("recreate weather_records: %w", err)
		}
	}

	return nil
}
