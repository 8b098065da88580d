// Package store persists sales snapshots and serves the current one.
//
// Writes go through a single database transaction, then the committed rows
// are swapped into an immutable in-memory state (a boutique.Store). Readers
// only ever see a fully committed snapshot; a failed save leaves both the
// database rows and the in-memory state untouched.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"framtrack/internal/models"
	"github.com/johnsiilver/boutique"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a company is not part of the current snapshot.
	ErrNotFound = errors.New("company not found")

	// ErrIO wraps underlying storage failures.
	ErrIO = errors.New("storage failure")
)

// CurrentState is the immutable value held by the in-memory store.
// Companies is ordered by rank ascending and must never be mutated in
// place; replace the whole value instead.
type CurrentState struct {
	Companies   []models.SalesSnapshot
	LastUpdated time.Time
}

// Action types for the boutique store.
const (
	actReplaceSnapshot = iota
)

func replaceSnapshot(s CurrentState) boutique.Action {
	return boutique.Action{Type: actReplaceSnapshot, Update: s}
}

func applyAction(state interface{}, action boutique.Action) interface{} {
	s := state.(CurrentState)
	switch action.Type {
	case actReplaceSnapshot:
		return action.Update.(CurrentState)
	}
	return s
}

// Store holds the durable snapshot tables and the in-memory current state.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	state  *boutique.Store
}

// New creates a Store on top of the given database connection.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	state, err := boutique.New(CurrentState{}, boutique.NewModifiers(applyAction), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	return &Store{db: db, logger: logger, state: state}, nil
}

// Save atomically replaces the current snapshot with the given rows and
// appends the cycle's market trend records. All-or-nothing: if the
// transaction fails the previous snapshot stays in place, both on disk and
// in memory, and the error wraps ErrIO.
func (s *Store) Save(snapshots []models.SalesSnapshot) error {
	if len(snapshots) == 0 {
		return fmt.Errorf("refusing to save an empty snapshot")
	}

	at := snapshots[0].DateUpdated
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.SalesSnapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&snapshots).Error; err != nil {
			return err
		}

		totalSales := 0
		totalRevenue := 0.0
		for _, snap := range snapshots {
			totalSales += snap.DailySales
			totalRevenue += snap.Revenue
		}
		trends := []models.MarketTrend{
			{
				TrendType:    models.TrendTotalDailySales,
				Value:        float64(totalSales),
				DateRecorded: at,
				Description:  "Total daily sales across tracked companies",
			},
			{
				TrendType:    models.TrendAvgRevenue,
				Value:        totalRevenue / float64(len(snapshots)),
				DateRecorded: at,
				Description:  "Average revenue across tracked companies",
			},
		}
		return tx.Create(&trends).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.swap(snapshots, at)
	return nil
}

// LoadCurrent warms the in-memory state from the database. Called once at
// startup so a restart keeps serving the last committed snapshot.
func (s *Store) LoadCurrent() error {
	var rows []models.SalesSnapshot
	if err := s.db.Order("rank asc").Find(&rows).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if len(rows) == 0 {
		return nil
	}
	s.swap(rows, rows[0].DateUpdated)
	return nil
}

func (s *Store) swap(snapshots []models.SalesSnapshot, at time.Time) {
	// Copy before handing to the immutable store; callers keep their slice.
	ordered := make([]models.SalesSnapshot, len(snapshots))
	copy(ordered, snapshots)
	if err := s.state.Perform(replaceSnapshot(CurrentState{Companies: ordered, LastUpdated: at})); err != nil {
		s.logger.Error("Failed to swap current snapshot", zap.Error(err))
	}
}

// current returns the in-memory state value.
func (s *Store) current() CurrentState {
	return s.state.State().Data.(CurrentState)
}

// GetAll returns the current snapshot ordered by rank ascending. The
// returned slice is shared immutable state; callers must not modify it.
func (s *Store) GetAll() []models.SalesSnapshot {
	return s.current().Companies
}

// GetByName looks up a company in the current snapshot. The match is
// case-insensitive. Returns ErrNotFound when the company is absent.
func (s *Store) GetByName(name string) (models.SalesSnapshot, error) {
	for _, snap := range s.current().Companies {
		if strings.EqualFold(snap.CompanyName, name) {
			return snap, nil
		}
	}
	return models.SalesSnapshot{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// GetTotalMarketSize sums revenue across the current snapshot.
func (s *Store) GetTotalMarketSize() float64 {
	total := 0.0
	for _, snap := range s.current().Companies {
		total += snap.Revenue
	}
	return total
}

// LastUpdated returns the timestamp of the current snapshot, or the zero
// time when no snapshot has been committed yet.
func (s *Store) LastUpdated() time.Time {
	return s.current().LastUpdated
}

// Trends returns the most recent market trend rows, newest first.
func (s *Store) Trends(limit int) ([]models.MarketTrend, error) {
	var trends []models.MarketTrend
	if err := s.db.Order("date_recorded desc").Limit(limit).Find(&trends).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return trends, nil
}

// Subscribe delivers a signal each time a new snapshot is committed.
// Cancel the subscription when done.
func (s *Store) Subscribe() (chan boutique.Signal, boutique.CancelFunc, error) {
	return s.state.Subscribe("Companies")
}
