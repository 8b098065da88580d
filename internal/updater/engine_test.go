package updater

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"framtrack/internal/config"
	"framtrack/internal/database"
	"framtrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Updater: config.Updater{UpdateHours: []int{0, 12}},
		Market: config.Market{
			Validation: config.Validation{MinDailySales: 50, MaxDailySales: 2000},
			Companies: []config.Company{
				{Name: "John Deere", BaseSales: 850, MarketShare: 35.2, BaseRevenue: 15.8, Volatility: 0.15, Models: []string{"5075E"}},
				{Name: "Kubota", BaseSales: 420, MarketShare: 18.5, BaseRevenue: 8.2, Volatility: 0.12, Models: []string{"L3901"}},
				{Name: "Mahindra", BaseSales: 310, MarketShare: 13.8, BaseRevenue: 5.9, Volatility: 0.20, Models: []string{"2638"}},
			},
		},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db, cfg))

	st, err := store.New(db, zap.NewNop())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	return NewEngine(zap.NewNop(), cfg, db, st, nil, rng), st
}

func TestUpdateNow(t *testing.T) {
	cfg := testConfig()
	engine, st := newTestEngine(t, cfg)

	require.NoError(t, engine.UpdateNow(context.Background()))

	got := st.GetAll()
	require.Len(t, got, len(cfg.Market.Companies))
	for i, snap := range got {
		assert.Equal(t, i+1, snap.Rank)
		assert.Positive(t, snap.DailySales)
	}
	assert.False(t, st.LastUpdated().IsZero())
}

func TestUpdateNowNonReentrant(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	engine.running.Store(true)
	err := engine.UpdateNow(context.Background())
	assert.ErrorIs(t, err, ErrUpdateInProgress)
	engine.running.Store(false)

	assert.NoError(t, engine.UpdateNow(context.Background()))
}

type fakeSource struct {
	factors map[string]float64
	calls   int
	err     error
}

func (f *fakeSource) GetGrowthFactors(ctx context.Context) (map[string]float64, error) {
	f.calls++
	return f.factors, f.err
}

func TestUpdateNowUsesGrowthSource(t *testing.T) {
	cfg := testConfig()
	engine, st := newTestEngine(t, cfg)
	source := &fakeSource{factors: map[string]float64{"John Deere": 1.1}}
	engine.source = source

	require.NoError(t, engine.UpdateNow(context.Background()))
	assert.Equal(t, 1, source.calls)
	require.NotEmpty(t, st.GetAll())
}

func TestUpdateNowSurvivesSourceFailure(t *testing.T) {
	cfg := testConfig()
	engine, st := newTestEngine(t, cfg)
	source := &fakeSource{err: assert.AnError}
	engine.source = source

	// The cycle proceeds on base jitter alone.
	require.NoError(t, engine.UpdateNow(context.Background()))
	assert.Equal(t, 1, source.calls)
	require.Len(t, st.GetAll(), len(cfg.Market.Companies))
}

func TestNextRun(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	loc := time.UTC

	testCases := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "Morning rolls to noon",
			now:      time.Date(2025, time.April, 15, 5, 30, 0, 0, loc),
			expected: time.Date(2025, time.April, 15, 12, 0, 0, 0, loc),
		},
		{
			name:     "Afternoon rolls to next midnight",
			now:      time.Date(2025, time.April, 15, 13, 0, 0, 0, loc),
			expected: time.Date(2025, time.April, 16, 0, 0, 0, 0, loc),
		},
		{
			name:     "Exactly noon rolls to next midnight",
			now:      time.Date(2025, time.April, 15, 12, 0, 0, 0, loc),
			expected: time.Date(2025, time.April, 16, 0, 0, 0, 0, loc),
		},
		{
			name:     "End of month rolls over",
			now:      time.Date(2025, time.April, 30, 18, 0, 0, 0, loc),
			expected: time.Date(2025, time.May, 1, 0, 0, 0, 0, loc),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, engine.NextRun(tc.now))
		})
	}
}

func TestRunComputesInitialSnapshot(t *testing.T) {
	engine, st := newTestEngine(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()

	// Run computes a snapshot immediately when the database is empty.
	assert.Eventually(t, func() bool {
		return len(st.GetAll()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after context cancel")
	}
}
