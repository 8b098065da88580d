package database

import (
	"testing"

	"framtrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Market: config.Market{
			Validation: config.Validation{MinDailySales: 50, MaxDailySales: 2000},
			Companies: []config.Company{
				{Name: "John Deere", BaseSales: 850, MarketShare: 35.2, BaseRevenue: 15.8, Volatility: 0.15, Models: []string{"5075E", "6120M"}},
				{Name: "Kubota", BaseSales: 420, MarketShare: 18.5, BaseRevenue: 8.2, Volatility: 0.12, Models: []string{"L3901"}},
			},
		},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrateSeedsRoster(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()

	require.NoError(t, Migrate(db, cfg))

	profiles, err := Profiles(db)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "John Deere", profiles[0].Name)
	assert.Equal(t, 850, profiles[0].BaseSales)
	assert.Equal(t, []string{"5075E", "6120M"}, profiles[0].ModelList())
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()

	require.NoError(t, Migrate(db, cfg))
	require.NoError(t, Migrate(db, cfg))

	profiles, err := Profiles(db)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestMigrateKeepsExistingProfiles(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	require.NoError(t, Migrate(db, cfg))

	// A changed roster entry does not overwrite the seeded profile; the
	// roster is immutable after first startup.
	cfg.Market.Companies[0].BaseSales = 999
	require.NoError(t, Migrate(db, cfg))

	profiles, err := Profiles(db)
	require.NoError(t, err)
	assert.Equal(t, 850, profiles[0].BaseSales)
}
