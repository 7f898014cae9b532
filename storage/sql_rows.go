package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"apartment-prices/models"
)

// listingColumns is the column order shared by the SQL snapshot stores.
var listingColumns = []string{
	"city", "price", "square_meters", "floor", "floor_count", "build_year",
	"centre_distance", "ownership", "has_parking_space", "has_balcony",
	"has_elevator", "has_security", "has_storage_room", "source_file", "extra",
	"priceperm2", "building_age", "month", "floor_rel",
}

func nullFloat(v float64) sql.NullFloat64 {
	if models.IsUndefined(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return models.Undefined()
	}
	return v.Float64
}

func encodeExtra(extra map[string]string) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("encode extra columns: %w", err)
	}
	return string(b), nil
}

func decodeExtra(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode extra columns: %w", err)
	}
	return out, nil
}

// sqlArgs flattens one listing in listingColumns order. month is passed
// through monthValue so each dialect can pick its own representation.
func sqlArgs(l *models.EnrichedListing, monthValue func(*models.EnrichedListing) any) ([]any, error) {
	extra, err := encodeExtra(l.Extra)
	if err != nil {
		return nil, err
	}
	c := l.Conveniences
	return []any{
		l.City, nullFloat(l.Price), nullFloat(l.SquareMeters), nullFloat(l.Floor),
		nullFloat(l.FloorCount), nullFloat(l.BuildYear), nullFloat(l.CentreDistance),
		l.Ownership, c.HasParkingSpace, c.HasBalcony, c.HasElevator, c.HasSecurity,
		c.HasStorageRoom, l.SourceFile, extra,
		nullFloat(l.PricePerM2), nullFloat(l.BuildingAge), monthValue(l), string(l.FloorRel),
	}, nil
}

// scannedRow receives one SELECT of listingColumns; month is scanned by the
// caller's dialect-specific destination.
type scannedRow struct {
	l          models.EnrichedListing
	price      sql.NullFloat64
	sqm        sql.NullFloat64
	floor      sql.NullFloat64
	floorCount sql.NullFloat64
	buildYear  sql.NullFloat64
	distance   sql.NullFloat64
	ppm2       sql.NullFloat64
	age        sql.NullFloat64
	extra      string
	floorRel   string
}

func (r *scannedRow) dest(month any) []any {
	c := &r.l.Conveniences
	return []any{
		&r.l.City, &r.price, &r.sqm, &r.floor, &r.floorCount, &r.buildYear,
		&r.distance, &r.l.Ownership, &c.HasParkingSpace, &c.HasBalcony,
		&c.HasElevator, &c.HasSecurity, &c.HasStorageRoom, &r.l.SourceFile, &r.extra,
		&r.ppm2, &r.age, month, &r.floorRel,
	}
}

func (r *scannedRow) listing() (models.EnrichedListing, error) {
	l := r.l
	l.Price = fromNull(r.price)
	l.SquareMeters = fromNull(r.sqm)
	l.Floor = fromNull(r.floor)
	l.FloorCount = fromNull(r.floorCount)
	l.BuildYear = fromNull(r.buildYear)
	l.CentreDistance = fromNull(r.distance)
	l.PricePerM2 = fromNull(r.ppm2)
	l.BuildingAge = fromNull(r.age)

	extra, err := decodeExtra(r.extra)
	if err != nil {
		return l, err
	}
	l.Extra = extra

	bucket, err := models.ParseFloorBucket(r.floorRel)
	if err != nil {
		return l, err
	}
	l.FloorRel = bucket
	return l, nil
}

// extraColumnsOf recovers a stable passthrough column order from stored rows.
func extraColumnsOf(listings []models.EnrichedListing) []string {
	seen := make(map[string]struct{})
	for _, l := range listings {
		for k := range l.Extra {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
