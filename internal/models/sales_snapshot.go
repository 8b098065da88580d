package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// SalesSnapshot is one company's computed figures for one update cycle.
// The full set of rows sharing a DateUpdated forms the current snapshot.
type SalesSnapshot struct {
	gorm.Model
	CompanyName string  `json:"company_name" gorm:"not null;index"`
	DailySales  int     `json:"daily_sales" gorm:"not null"`
	MarketShare float64 `json:"market_share" gorm:"not null"`
	Revenue     float64 `json:"revenue" gorm:"not null"` // in millions USD
	// PopularModels is a JSON-encoded list of model names.
	PopularModels string    `json:"-" gorm:"not null"`
	DateUpdated   time.Time `json:"last_updated" gorm:"not null"`
	Rank          int       `json:"rank" gorm:"not null"`
}

// TableName keeps the historical table name used by earlier deployments.
func (SalesSnapshot) TableName() string { return "tractor_sales" }

// ModelList decodes the stored popular model names.
func (s *SalesSnapshot) ModelList() []string {
	var names []string
	if err := json.Unmarshal([]byte(s.PopularModels), &names); err != nil {
		return nil
	}
	return names
}
