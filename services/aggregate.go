package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"apartment-prices/models"
)

// Aggregations are pure reductions over the enriched table: none of them
// modify their input. Undefined values are skipped; a group with no valid
// value yields undefined.

// mean is the arithmetic mean of the defined values, or undefined.
func mean(values []float64) float64 {
	valid := defined(values)
	if len(valid) == 0 {
		return models.Undefined()
	}
	return stat.Mean(valid, nil)
}

func defined(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !models.IsUndefined(v) {
			out = append(out, v)
		}
	}
	return out
}

// share is n/total, undefined for an empty group.
func share(n, total int) float64 {
	if total == 0 {
		return models.Undefined()
	}
	return float64(n) / float64(total)
}

// Pearson returns the correlation of the pairs where both values are
// defined. Fewer than two pairs or a constant series yields undefined.
func Pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if i >= len(y) {
			break
		}
		if models.IsUndefined(x[i]) || models.IsUndefined(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return models.Undefined()
	}
	if floats.Min(xs) == floats.Max(xs) || floats.Min(ys) == floats.Max(ys) {
		return models.Undefined()
	}
	return stat.Correlation(xs, ys, nil)
}

type group struct {
	key    string
	values []float64
}

// groupBy collects value(l) per key(l) in first-seen key order.
func groupBy(t *models.EnrichedTable, key func(*models.EnrichedListing) string, value func(*models.EnrichedListing) float64) []*group {
	index := make(map[string]*group)
	var order []*group
	for i := range t.Listings {
		l := &t.Listings[i]
		k := key(l)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			order = append(order, g)
		}
		g.values = append(g.values, value(l))
	}
	return order
}

func groupMeans(t *models.EnrichedTable, key func(*models.EnrichedListing) string, value func(*models.EnrichedListing) float64) []models.GroupStat {
	groups := groupBy(t, key, value)
	out := make([]models.GroupStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.GroupStat{Key: g.key, Value: mean(g.values), Count: len(g.values)})
	}
	return out
}

// sortByValue orders stats by Value with undefined values last and ties
// broken by key.
func sortByValue(stats []models.GroupStat, descending bool) []models.GroupStat {
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		an, bn := models.IsUndefined(a.Value), models.IsUndefined(b.Value)
		switch {
		case an && bn:
			return a.Key < b.Key
		case an:
			return false
		case bn:
			return true
		case a.Value == b.Value:
			return a.Key < b.Key
		case descending:
			return a.Value > b.Value
		default:
			return a.Value < b.Value
		}
	})
	return stats
}

func byCity(l *models.EnrichedListing) string { return l.City }
func byOwnership(l *models.EnrichedListing) string { return l.Ownership }
func byFloorRel(l *models.EnrichedListing) string { return string(l.FloorRel) }
func pricePerM2(l *models.EnrichedListing) float64 { return l.PricePerM2 }
func buildingAge(l *models.EnrichedListing) float64 { return l.BuildingAge }
func centreDistance(l *models.EnrichedListing) float64 { return l.CentreDistance }

// CityCounts counts listings per city, most listings first.
func CityCounts(t *models.EnrichedTable) []models.GroupStat {
	groups := groupBy(t, byCity, pricePerM2)
	out := make([]models.GroupStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.GroupStat{Key: g.key, Value: float64(len(g.values)), Count: len(g.values)})
	}
	return sortByValue(out, true)
}

// AvgPriceByMonth is the canonical trend series: mean price per area per
// calendar month, ascending by month.
func AvgPriceByMonth(t *models.EnrichedTable) []models.MonthStat {
	index := make(map[time.Time][]float64)
	for i := range t.Listings {
		l := &t.Listings[i]
		if l.Month.IsZero() {
			continue
		}
		m := time.Date(l.Month.Year(), l.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		index[m] = append(index[m], l.PricePerM2)
	}

	out := make([]models.MonthStat, 0, len(index))
	for m, values := range index {
		out = append(out, models.MonthStat{Month: m, Value: mean(values), Count: len(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// AvgPriceByCity is the mean price per area per city, most expensive first.
func AvgPriceByCity(t *models.EnrichedTable) []models.GroupStat {
	return sortByValue(groupMeans(t, byCity, pricePerM2), true)
}

// AvgBuildingAgeByCity is the mean building age per city, youngest first.
func AvgBuildingAgeByCity(t *models.EnrichedTable) []models.GroupStat {
	return sortByValue(groupMeans(t, byCity, buildingAge), false)
}

// AvgPriceByOwnership is the mean price per area per ownership type.
func AvgPriceByOwnership(t *models.EnrichedTable) []models.GroupStat {
	return sortByValue(groupMeans(t, byOwnership, pricePerM2), true)
}

// AvgPriceByFloorRel is the mean price per area per relative floor bucket.
func AvgPriceByFloorRel(t *models.EnrichedTable) []models.GroupStat {
	return sortByValue(groupMeans(t, byFloorRel, pricePerM2), true)
}

// CountBuiltByYear counts, per city, listings whose building was finished
// in or before cutoff. Cities without such listings are omitted.
func CountBuiltByYear(t *models.EnrichedTable, cutoff int) []models.GroupStat {
	counts := builtByCounts(t, cutoff)
	out := make([]models.GroupStat, 0, len(counts))
	for city, n := range counts {
		out = append(out, models.GroupStat{Key: city, Value: float64(n), Count: n})
	}
	return sortByValue(out, true)
}

func builtByCounts(t *models.EnrichedTable, cutoff int) map[string]int {
	counts := make(map[string]int)
	for i := range t.Listings {
		l := &t.Listings[i]
		if !models.IsUndefined(l.BuildYear) && l.BuildYear <= float64(cutoff) {
			counts[l.City]++
		}
	}
	return counts
}

// BuiltByShareByCity is the fraction of each city's listings built in or
// before cutoff, smallest share first.
func BuiltByShareByCity(t *models.EnrichedTable, cutoff int) []models.GroupStat {
	counts := builtByCounts(t, cutoff)
	totals := CityCounts(t)
	out := make([]models.GroupStat, 0, len(totals))
	for _, c := range totals {
		out = append(out, models.GroupStat{Key: c.Key, Value: share(counts[c.Key], c.Count), Count: c.Count})
	}
	return sortByValue(out, false)
}

// BuildCityMetrics lines up per-city totals, old-building share, mean price
// per area and mean building age. Cities with any undefined metric are
// dropped. Sorted by city.
func BuildCityMetrics(t *models.EnrichedTable, cutoff int) []models.CityMetrics {
	counts := builtByCounts(t, cutoff)
	prices := make(map[string]float64)
	for _, s := range groupMeans(t, byCity, pricePerM2) {
		prices[s.Key] = s.Value
	}
	ages := make(map[string]float64)
	for _, s := range groupMeans(t, byCity, buildingAge) {
		ages[s.Key] = s.Value
	}

	var out []models.CityMetrics
	for _, c := range CityCounts(t) {
		m := models.CityMetrics{
			City:        c.Key,
			Total:       c.Count,
			BuiltBy:     counts[c.Key],
			Share:       share(counts[c.Key], c.Count),
			PricePerM2:  prices[c.Key],
			BuildingAge: ages[c.Key],
		}
		if models.IsUndefined(m.Share) || models.IsUndefined(m.PricePerM2) || models.IsUndefined(m.BuildingAge) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// CityMetricsCorrelation relates the old-building share to mean price
// across cities.
func CityMetricsCorrelation(metrics []models.CityMetrics) float64 {
	shares := make([]float64, len(metrics))
	prices := make([]float64, len(metrics))
	for i, m := range metrics {
		shares[i] = m.Share
		prices[i] = m.PricePerM2
	}
	return Pearson(shares, prices)
}

func column(t *models.EnrichedTable, value func(*models.EnrichedListing) float64) []float64 {
	out := make([]float64, len(t.Listings))
	for i := range t.Listings {
		out[i] = value(&t.Listings[i])
	}
	return out
}

// DistancePriceCorr is the global correlation between distance to the
// city centre and price per area.
func DistancePriceCorr(t *models.EnrichedTable) float64 {
	return Pearson(column(t, centreDistance), column(t, pricePerM2))
}

// AgePriceCorr is the correlation between building age and price per area.
func AgePriceCorr(t *models.EnrichedTable) float64 {
	return Pearson(column(t, buildingAge), column(t, pricePerM2))
}

// CorrPerCity is the distance/price correlation inside each city, strongest
// positive first, undefined last.
func CorrPerCity(t *models.EnrichedTable) []models.GroupStat {
	type pairs struct{ x, y []float64 }
	index := make(map[string]*pairs)
	var order []string
	for i := range t.Listings {
		l := &t.Listings[i]
		p, ok := index[l.City]
		if !ok {
			p = &pairs{}
			index[l.City] = p
			order = append(order, l.City)
		}
		p.x = append(p.x, l.CentreDistance)
		p.y = append(p.y, l.PricePerM2)
	}

	out := make([]models.GroupStat, 0, len(order))
	for _, city := range order {
		p := index[city]
		out = append(out, models.GroupStat{Key: city, Value: Pearson(p.x, p.y), Count: len(p.x)})
	}
	return sortByValue(out, true)
}

// AvgPriceByDistanceBins partitions centreDistance of the selected cities
// into fixed-width bins starting at 0 and pivots mean price per area so
// each bin is a row and each city a column. An empty cities list selects
// every city; names are matched case-insensitively. The last bin is closed
// so it contains the maximum distance.
func AvgPriceByDistanceBins(t *models.EnrichedTable, cities []string, width float64) (*models.DistancePivot, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, models.ErrInvalidBinWidth
	}

	selected := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		selected[normaliseLabel(c)] = struct{}{}
	}
	include := func(city string) bool {
		if len(selected) == 0 {
			return true
		}
		_, ok := selected[city]
		return ok
	}

	maxDist := math.Inf(-1)
	present := make(map[string]struct{})
	for i := range t.Listings {
		l := &t.Listings[i]
		if !include(l.City) {
			continue
		}
		present[l.City] = struct{}{}
		if d := l.CentreDistance; !models.IsUndefined(d) && d >= 0 && d > maxDist {
			maxDist = d
		}
	}

	pivot := &models.DistancePivot{BinWidth: width}
	for c := range present {
		pivot.Cities = append(pivot.Cities, c)
	}
	sort.Strings(pivot.Cities)
	if math.IsInf(maxDist, -1) {
		return pivot, nil
	}

	n, err := BinCount(maxDist, width)
	if err != nil {
		return nil, err
	}
	colIndex := make(map[string]int, len(pivot.Cities))
	for i, c := range pivot.Cities {
		colIndex[c] = i
	}
	cells := make([][][]float64, n)
	for b := range cells {
		cells[b] = make([][]float64, len(pivot.Cities))
	}

	for i := range t.Listings {
		l := &t.Listings[i]
		if !include(l.City) {
			continue
		}
		b := BinIndex(l.CentreDistance, width, n)
		if b < 0 {
			continue
		}
		c := colIndex[l.City]
		cells[b][c] = append(cells[b][c], l.PricePerM2)
	}

	pivot.Bins = make([]models.DistanceBin, n)
	for b := 0; b < n; b++ {
		means := make([]float64, len(pivot.Cities))
		for c := range means {
			means[c] = mean(cells[b][c])
		}
		pivot.Bins[b] = models.DistanceBin{
			Lower: float64(b) * width,
			Upper: float64(b+1) * width,
			Means: means,
		}
	}
	return pivot, nil
}

// MaxDistanceBins caps the pivot height. A width small enough to need more
// bins than this is rejected rather than allocated.
const MaxDistanceBins = 1_000_000

// BinCount is ceil(maxDistance/width), with at least one bin so a maximum
// of zero still has somewhere to go. It fails with ErrInvalidBinWidth when
// the quotient is not finite or exceeds MaxDistanceBins.
func BinCount(maxDistance, width float64) (int, error) {
	q := math.Ceil(maxDistance / width)
	if math.IsNaN(q) || math.IsInf(q, 0) || q > MaxDistanceBins {
		return 0, fmt.Errorf("%w: %g km at width %g needs too many bins (max %d)",
			models.ErrInvalidBinWidth, maxDistance, width, MaxDistanceBins)
	}
	if q < 1 {
		return 1, nil
	}
	return int(q), nil
}

// BinIndex maps a distance onto [0, n). Undefined or negative distances
// return -1. Values at or past the last edge fall into the last bin.
func BinIndex(distance, width float64, n int) int {
	if models.IsUndefined(distance) || distance < 0 {
		return -1
	}
	b := int(math.Floor(distance / width))
	if b >= n {
		b = n - 1
	}
	return b
}

// ListingFilter mirrors the dashboard controls. Nil bounds are open; a set
// bound excludes rows whose value is undefined. Bounds are inclusive. City
// goes through the Cleaner's label normalisation before matching.
type ListingFilter struct {
	City     string
	MinAge   *float64
	MaxAge   *float64
	MinPrice *float64
	MaxPrice *float64
}

// FilterListings returns a new table holding the rows that pass f.
func FilterListings(t *models.EnrichedTable, f ListingFilter) *models.EnrichedTable {
	city := normaliseLabel(f.City)
	out := &models.EnrichedTable{ExtraColumns: append([]string(nil), t.ExtraColumns...)}
	for _, l := range t.Listings {
		if city != "" && l.City != city {
			continue
		}
		if !within(l.BuildingAge, f.MinAge, f.MaxAge) || !within(l.PricePerM2, f.MinPrice, f.MaxPrice) {
			continue
		}
		out.Listings = append(out.Listings, l)
	}
	return out
}

func within(v float64, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if models.IsUndefined(v) {
		return false
	}
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

// ageBins are right-closed building-age groups; age 0 falls outside.
var ageBins = []struct {
	label  string
	lo, hi float64
}{
	{"0-20", 0, 20},
	{"21-40", 20, 40},
	{"41-60", 40, 60},
	{"61-80", 60, 80},
	{"81-100", 80, 100},
	{"100+", 100, 200},
}

// MedianPriceByAgeBin is the median price per area for each building-age
// group, in age order. Empty groups are undefined.
func MedianPriceByAgeBin(t *models.EnrichedTable) []models.GroupStat {
	values := make([][]float64, len(ageBins))
	for i := range t.Listings {
		l := &t.Listings[i]
		for b, bin := range ageBins {
			if l.BuildingAge > bin.lo && l.BuildingAge <= bin.hi {
				values[b] = append(values[b], l.PricePerM2)
				break
			}
		}
	}

	out := make([]models.GroupStat, len(ageBins))
	for b, bin := range ageBins {
		out[b] = models.GroupStat{Key: bin.label, Value: Median(defined(values[b])), Count: len(values[b])}
	}
	return out
}

// OwnershipFloorPivot is the mean price per area per (ownership, floor),
// skipping the excluded ownership labels and rows without a floor.
func OwnershipFloorPivot(t *models.EnrichedTable, exclude []string) []models.PivotCell {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[normaliseLabel(e)] = struct{}{}
	}

	type cellKey struct {
		owner string
		floor float64
	}
	index := make(map[cellKey][]float64)
	for i := range t.Listings {
		l := &t.Listings[i]
		if _, ok := skip[l.Ownership]; ok || models.IsUndefined(l.Floor) {
			continue
		}
		k := cellKey{l.Ownership, l.Floor}
		index[k] = append(index[k], l.PricePerM2)
	}

	out := make([]models.PivotCell, 0, len(index))
	for k, values := range index {
		out = append(out, models.PivotCell{Row: k.owner, Column: k.floor, Value: mean(values)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// ConvenienceShares is the percentage of listings with each amenity flag
// set, rounded to two decimals, in ConvenienceColumns order.
func ConvenienceShares(t *models.EnrichedTable) []models.GroupStat {
	out := make([]models.GroupStat, 0, len(models.ConvenienceColumns))
	for _, col := range models.ConvenienceColumns {
		n := 0
		for i := range t.Listings {
			if t.Listings[i].Conveniences.Get(col) {
				n++
			}
		}
		v := share(n, len(t.Listings))
		if !models.IsUndefined(v) {
			v = round2(v * 100)
		}
		out = append(out, models.GroupStat{Key: col, Value: v, Count: n})
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
