package services

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// monthRegexp captures the year_month token of apartments_pl_YYYY_MM.csv.
var monthRegexp = regexp.MustCompile(`_(\d{4})_(\d{2})`)

// Floor bucket upper edges; buckets are closed on the right.
const (
	lowFloorEdge    = 0.33
	mediumFloorEdge = 0.66
)

// FeatureDeriver appends the analytical columns to a cleaned table.
type FeatureDeriver struct {
	logger *utils.Logger
}

func NewFeatureDeriver(logger *utils.Logger) *FeatureDeriver {
	return &FeatureDeriver{logger: logger}
}

// Derive returns a new EnrichedTable with one row per input listing.
// ref is the reference date for building age.
func (d *FeatureDeriver) Derive(t *models.ListingTable, ref time.Time) (*models.EnrichedTable, error) {
	months := make(map[string]time.Time)
	out := &models.EnrichedTable{
		ExtraColumns: append([]string(nil), t.ExtraColumns...),
		Listings:     make([]models.EnrichedListing, 0, len(t.Listings)),
	}

	for _, l := range t.Listings {
		month, ok := months[l.SourceFile]
		if !ok {
			m, err := ParseSourceMonth(l.SourceFile)
			if err != nil {
				return nil, err
			}
			months[l.SourceFile] = m
			month = m
		}

		out.Listings = append(out.Listings, models.EnrichedListing{
			Listing:     l,
			PricePerM2:  PricePerM2(l.Price, l.SquareMeters),
			BuildingAge: BuildingAge(l.BuildYear, ref),
			Month:       month,
			FloorRel:    RelativeFloor(l.Floor, l.FloorCount),
		})
	}

	d.logger.Info("[features] Derived columns for %d listings across %d months", len(out.Listings), len(months))
	return out, nil
}

// ParseSourceMonth extracts the first day of the listing month from a
// source filename such as apartments_pl_2023_01.csv.
func ParseSourceMonth(file string) (time.Time, error) {
	m := monthRegexp.FindStringSubmatch(file)
	if m == nil {
		return time.Time{}, &models.FeatureDerivationError{File: file, Reason: "no _YYYY_MM token"}
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, &models.FeatureDerivationError{File: file, Reason: "month " + m[2] + " out of range"}
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// PricePerM2 divides price by area. Invalid operands, a zero area and
// non-finite results yield undefined rather than an error.
func PricePerM2(price, squareMeters float64) float64 {
	if models.IsUndefined(price) || models.IsUndefined(squareMeters) || squareMeters == 0 {
		return models.Undefined()
	}
	v := price / squareMeters
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return models.Undefined()
	}
	return v
}

// BuildingAge is ref's calendar year minus the build year.
func BuildingAge(buildYear float64, ref time.Time) float64 {
	if models.IsUndefined(buildYear) {
		return models.Undefined()
	}
	return float64(ref.Year()) - buildYear
}

// RelativeFloor buckets (floor-1)/(floorCount-1). Single-storey buildings
// and undefined ratios count as low.
func RelativeFloor(floor, floorCount float64) models.FloorBucket {
	rel := 0.0
	if floorCount > 1 {
		if r := (floor - 1) / (floorCount - 1); !math.IsNaN(r) && !math.IsInf(r, 0) {
			rel = r
		}
	}
	switch {
	case rel <= lowFloorEdge:
		return models.FloorLow
	case rel <= mediumFloorEdge:
		return models.FloorMedium
	default:
		return models.FloorHigh
	}
}
