package models

import "time"

// GroupStat is one row of a grouped reduction keyed by a categorical value.
// Value is Undefined() when the group had no valid observations.
type GroupStat struct {
	Key   string
	Value float64
	Count int
}

// MonthStat is one point of the monthly price-per-area trend.
type MonthStat struct {
	Month time.Time
	Value float64
	Count int
}

// CityMetrics is the per-city summary used to relate old-building share to price.
type CityMetrics struct {
	City        string
	Total       int
	BuiltBy     int
	Share       float64
	PricePerM2  float64
	BuildingAge float64
}

// DistanceBin is one row of the distance pivot: [Lower, Upper) except the
// last bin, which is closed on the right.
type DistanceBin struct {
	Lower float64
	Upper float64
	// Means is aligned with DistancePivot.Cities.
	Means []float64
}

// DistancePivot holds mean price per area per (distance bin, city).
type DistancePivot struct {
	BinWidth float64
	Cities   []string
	Bins     []DistanceBin
}

// Mean returns the cell for a city and bin index, or Undefined().
func (p *DistancePivot) Mean(city string, bin int) float64 {
	if bin < 0 || bin >= len(p.Bins) {
		return Undefined()
	}
	for i, c := range p.Cities {
		if c == city {
			return p.Bins[bin].Means[i]
		}
	}
	return Undefined()
}

// PivotCell is one (row, column) mean of a two-key grouping.
type PivotCell struct {
	Row    string
	Column float64
	Value  float64
}

// InsightReport bundles the standard aggregator outputs for rendering.
type InsightReport struct {
	TotalListings     int
	CityCounts        []GroupStat
	MonthlyPrice      []MonthStat
	PriceByCity       []GroupStat
	BuildingAgeByCity []GroupStat
	BuiltByCutoff     int
	BuiltByCount      []GroupStat
	BuiltByShare      []GroupStat
	CityMetrics       []CityMetrics
	ShareVsPriceCorr  float64
	DistancePriceCorr float64
	CorrByCity        []GroupStat
	DistanceBins      *DistancePivot
	AgePriceCorr      float64
	PriceByAgeBin     []GroupStat
	PriceByOwnership  []GroupStat
	PriceByFloorRel   []GroupStat
	OwnershipFloor    []PivotCell
	ConvenienceShares []GroupStat
}

// PolicyComparison lines up the drop and fill pipelines over the same input.
type PolicyComparison struct {
	Dropped            *EnrichedTable
	Filled             *EnrichedTable
	MonthlyDropped     []MonthStat
	MonthlyFilled      []MonthStat
	ConvenienceDropped []GroupStat
	ConvenienceFilled  []GroupStat
}
