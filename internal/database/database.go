package database

import (
	"fmt"

	"framtrack/internal/config"
	"framtrack/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection, migrates the schema and
// seeds the company roster.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema and seeds the company roster from
// the config. Existing snapshot and trend rows are kept: the current
// snapshot must survive a restart.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.CompanyProfile{}, &models.SalesSnapshot{}, &models.MarketTrend{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	for _, c := range cfg.Market.Companies {
		profile := models.CompanyProfile{
			Name:        c.Name,
			BaseSales:   c.BaseSales,
			MarketShare: c.MarketShare,
			BaseRevenue: c.BaseRevenue,
			Volatility:  c.Volatility,
		}
		profile.EncodeModels(c.Models)
		if err := db.FirstOrCreate(&profile, models.CompanyProfile{Name: c.Name}).Error; err != nil {
			return fmt.Errorf("failed to seed company '%s': %w", c.Name, err)
		}
	}

	return nil
}

// Profiles returns the seeded company roster in insertion order.
func Profiles(db *gorm.DB) ([]models.CompanyProfile, error) {
	var profiles []models.CompanyProfile
	if err := db.Order("id asc").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load company profiles: %w", err)
	}
	return profiles, nil
}
