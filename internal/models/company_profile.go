package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// CompanyProfile is one entry of the fixed company roster. Profiles are
// seeded once at first startup and never mutated or deleted afterwards.
type CompanyProfile struct {
	gorm.Model
	Name        string  `gorm:"uniqueIndex;not null"`
	BaseSales   int     `gorm:"not null"`
	MarketShare float64 `gorm:"not null"`
	BaseRevenue float64 `gorm:"not null"` // in millions USD
	Volatility  float64 `gorm:"not null"` // ± fraction bounding the daily jitter
	// PopularModels is a JSON-encoded list of model names.
	PopularModels string
}

// ModelList decodes the stored popular model names.
func (p *CompanyProfile) ModelList() []string {
	var names []string
	if err := json.Unmarshal([]byte(p.PopularModels), &names); err != nil {
		return nil
	}
	return names
}

// EncodeModels stores the given model names as JSON.
func (p *CompanyProfile) EncodeModels(names []string) {
	b, _ := json.Marshal(names)
	p.PopularModels = string(b)
}
