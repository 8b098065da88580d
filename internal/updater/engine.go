// Package updater owns the scheduled recompute-and-save job.
package updater

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"framtrack/internal/config"
	"framtrack/internal/database"
	"framtrack/internal/guru"
	"framtrack/internal/market"
	"framtrack/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUpdateInProgress is returned when an update cycle is already running.
var ErrUpdateInProgress = errors.New("update already in progress")

// Engine runs the twice-daily snapshot recompute. A failed cycle leaves the
// prior snapshot serving reads; the next scheduled tick retries.
type Engine struct {
	logger  *zap.Logger
	cfg     *config.Config
	db      *gorm.DB
	store   *store.Store
	source  guru.GrowthSource // nil when the external source is disabled
	rng     *rand.Rand
	running atomic.Bool
}

// NewEngine creates a new updater engine. rng may be nil, in which case a
// time-seeded source is used; tests inject a fixed seed.
func NewEngine(logger *zap.Logger, cfg *config.Config, db *gorm.DB, st *store.Store, source guru.GrowthSource, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		logger: logger,
		cfg:    cfg,
		db:     db,
		store:  st,
		source: source,
		rng:    rng,
	}
}

// Run starts the engine's scheduling loop. It first warms the current
// snapshot from the database, computing a fresh one if the database is
// empty, then fires at each configured update hour until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if err := e.store.LoadCurrent(); err != nil {
		e.logger.Error("Failed to load current snapshot from database", zap.Error(err))
	}

	if len(e.store.GetAll()) == 0 {
		e.logger.Info("No snapshot found, computing initial one")
		if err := e.UpdateNow(ctx); err != nil {
			e.logger.Error("Initial update failed", zap.Error(err))
		}
	} else {
		e.logger.Info("Loaded existing snapshot",
			zap.Time("last_updated", e.store.LastUpdated()),
			zap.Int("companies", len(e.store.GetAll())))
	}

	for {
		next := e.NextRun(time.Now())
		e.logger.Info("Next scheduled update", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("Stopping updater engine...")
			return
		case <-timer.C:
			if err := e.UpdateNow(ctx); err != nil {
				e.logger.Error("Scheduled update failed", zap.Error(err))
			}
		}
	}
}

// NextRun returns the next configured update hour boundary strictly after now.
func (e *Engine) NextRun(now time.Time) time.Time {
	hours := e.cfg.Updater.UpdateHours
	if len(hours) == 0 {
		hours = []int{0, 12}
	}
	sorted := make([]int, len(hours))
	copy(sorted, hours)
	sort.Ints(sorted)

	for _, h := range sorted {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}
	// All of today's hours have passed; first hour tomorrow.
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), sorted[0], 0, 0, 0, now.Location())
}

// UpdateNow runs one recompute-and-save cycle. Non-reentrant: a second
// caller gets ErrUpdateInProgress while a cycle is running.
func (e *Engine) UpdateNow(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrUpdateInProgress
	}
	defer e.running.Store(false)

	now := time.Now()
	e.logger.Info("Updating sales data", zap.Time("at", now))

	profiles, err := database.Profiles(e.db)
	if err != nil {
		return fmt.Errorf("could not load company roster: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("company roster is empty")
	}

	var growth map[string]float64
	if e.source != nil {
		growth, err = e.source.GetGrowthFactors(ctx)
		if err != nil {
			// Best effort: the cycle proceeds on base jitter alone.
			e.logger.Warn("External market data unavailable", zap.Error(err))
			growth = nil
		}
	}

	snapshots := market.Recompute(profiles, now, e.rng, growth)
	if err := e.store.Save(snapshots); err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}

	totalSales := 0
	for _, snap := range snapshots {
		totalSales += snap.DailySales
	}
	e.logger.Info("Sales data updated",
		zap.Int("companies", len(snapshots)),
		zap.Int("total_daily_sales", totalSales))
	return nil
}

// Running reports whether an update cycle is currently in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}
