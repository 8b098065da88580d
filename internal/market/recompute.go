// Package market implements the snapshot recompute engine. Recompute is a
// pure function of its inputs (roster, time, random source, growth factors)
// so it can be tested without any timer or storage dependency.
package market

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"framtrack/internal/models"
)

// seasonalFactors maps a calendar month to the sales multiplier modelling
// the agricultural purchase cycle. Spring planting (Mar-May) peaks demand,
// summer (Jun-Aug) is the maintenance lull, fall (Sep-Nov) picks up for
// harvest and winter (Dec-Feb) is the planning trough.
var seasonalFactors = map[time.Month]float64{
	time.January:   0.70,
	time.February:  0.75,
	time.March:     1.20,
	time.April:     1.35,
	time.May:       1.40,
	time.June:      0.88,
	time.July:      0.90,
	time.August:    0.85,
	time.September: 1.15,
	time.October:   1.25,
	time.November:  1.20,
	time.December:  0.80,
}

// SeasonalFactor returns the sales multiplier for the given month.
func SeasonalFactor(month time.Month) float64 {
	return seasonalFactors[month]
}

// Secondary jitter bounds applied independently to market share and
// revenue so the three figures are not perfectly correlated.
const (
	secondaryJitterMin = 0.01
	secondaryJitterMax = 0.03
)

// Recompute produces a fresh ranked snapshot for the given roster at the
// given time. growth optionally supplies per-company growth factors from
// the external market data source; companies without an entry use 1.0.
//
// Ranks run 1..len(profiles) in descending daily-sales order, with ties
// keeping the roster order. Market shares are intentionally not
// renormalized to sum to 100 after perturbation.
func Recompute(profiles []models.CompanyProfile, at time.Time, rng *rand.Rand, growth map[string]float64) []models.SalesSnapshot {
	seasonal := SeasonalFactor(at.Month())

	snapshots := make([]models.SalesSnapshot, 0, len(profiles))
	for _, p := range profiles {
		g := 1.0
		if f, ok := growth[p.Name]; ok && f > 0 {
			g = f
		}

		// One jitter draw uniformly within ± the company's volatility band.
		jitter := (rng.Float64()*2 - 1) * p.Volatility

		dailySales := int(math.Round(float64(p.BaseSales) * seasonal * g * (1 + jitter)))
		if dailySales < 1 {
			dailySales = 1
		}

		// Share and revenue scale with the same ratio as the sales move,
		// each perturbed by its own small secondary jitter.
		ratio := float64(dailySales) / float64(p.BaseSales)
		share := p.MarketShare * ratio * (1 + secondaryJitter(rng))
		revenue := p.BaseRevenue * ratio * (1 + secondaryJitter(rng))

		snapshots = append(snapshots, models.SalesSnapshot{
			CompanyName:   p.Name,
			DailySales:    dailySales,
			MarketShare:   round1(share),
			Revenue:       round1(revenue),
			PopularModels: p.PopularModels,
			DateUpdated:   at,
		})
	}

	// Stable keeps roster order on equal sales.
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].DailySales > snapshots[j].DailySales
	})
	for i := range snapshots {
		snapshots[i].Rank = i + 1
	}

	return snapshots
}

// secondaryJitter draws a perturbation with magnitude in
// [secondaryJitterMin, secondaryJitterMax] and random sign.
func secondaryJitter(rng *rand.Rand) float64 {
	j := secondaryJitterMin + rng.Float64()*(secondaryJitterMax-secondaryJitterMin)
	if rng.Intn(2) == 0 {
		return -j
	}
	return j
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
