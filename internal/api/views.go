package api

import (
	"math"
	"time"

	"framtrack/internal/models"
)

// companyView is the wire shape of one company's figures.
type companyView struct {
	Rank          int      `json:"rank"`
	CompanyName   string   `json:"company_name"`
	DailySales    int      `json:"daily_sales"`
	MarketShare   float64  `json:"market_share"`
	Revenue       float64  `json:"revenue"`
	PopularModels []string `json:"popular_models"`
	LastUpdated   string   `json:"last_updated"`
}

// salesResponse is the wire shape of the full snapshot listing.
type salesResponse struct {
	Success         bool          `json:"success"`
	Data            []companyView `json:"data"`
	LastUpdated     string        `json:"last_updated"`
	TotalMarketSize float64       `json:"total_market_size"`
}

// trendView is the wire shape of one market trend row.
type trendView struct {
	TrendType    string  `json:"trend_type"`
	Value        float64 `json:"value"`
	DateRecorded string  `json:"date_recorded"`
	Description  string  `json:"description"`
}

func toView(snap models.SalesSnapshot) companyView {
	return companyView{
		Rank:          snap.Rank,
		CompanyName:   snap.CompanyName,
		DailySales:    snap.DailySales,
		MarketShare:   snap.MarketShare,
		Revenue:       snap.Revenue,
		PopularModels: snap.ModelList(),
		LastUpdated:   formatTime(snap.DateUpdated),
	}
}

// listPayload builds the full listing response. ok is false when no
// snapshot has been committed yet.
func (s *Server) listPayload() (salesResponse, bool) {
	snaps := s.store.GetAll()
	if len(snaps) == 0 {
		return salesResponse{}, false
	}

	views := make([]companyView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, toView(snap))
	}

	return salesResponse{
		Success:         true,
		Data:            views,
		LastUpdated:     formatTime(s.store.LastUpdated()),
		TotalMarketSize: math.Round(s.store.GetTotalMarketSize()*10) / 10,
	}, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
