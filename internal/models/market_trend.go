package models

import (
	"time"

	"gorm.io/gorm"
)

// Trend types recorded after each successful update cycle.
const (
	TrendTotalDailySales = "total_daily_sales"
	TrendAvgRevenue      = "avg_revenue"
)

// MarketTrend is an aggregate figure recorded per update cycle. Trend rows
// are append-only history; they are never overwritten.
type MarketTrend struct {
	gorm.Model
	TrendType    string    `json:"trend_type" gorm:"not null;index"`
	Value        float64   `json:"value" gorm:"not null"`
	DateRecorded time.Time `json:"date_recorded" gorm:"not null"`
	Description  string    `json:"description"`
}

// TableName keeps the historical table name used by earlier deployments.
func (MarketTrend) TableName() string { return "market_trends" }
