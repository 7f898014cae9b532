package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names as they appear in the monthly source files.
const (
	ColCity            = "city"
	ColPrice           = "price"
	ColSquareMeters    = "squareMeters"
	ColFloor           = "floor"
	ColFloorCount      = "floorCount"
	ColBuildYear       = "buildYear"
	ColCentreDistance  = "centreDistance"
	ColOwnership       = "ownership"
	ColHasParkingSpace = "hasParkingSpace"
	ColHasBalcony      = "hasBalcony"
	ColHasElevator     = "hasElevator"
	ColHasSecurity     = "hasSecurity"
	ColHasStorageRoom  = "hasStorageRoom"
	ColSourceFile      = "source_file"

	ColPricePerM2  = "priceperm2"
	ColBuildingAge = "building_age"
	ColMonth       = "month"
	ColFloorRel    = "floor_rel"
)

// ConvenienceColumns lists the yes/no amenity flags in output order.
var ConvenienceColumns = []string{
	ColHasParkingSpace, ColHasBalcony, ColHasElevator, ColHasSecurity, ColHasStorageRoom,
}

// Undefined returns the sentinel used for missing or invalid numeric values.
func Undefined() float64 { return math.NaN() }

// IsUndefined reports whether v carries no meaningful value.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// ParseNumber coerces a cell to float64. Blank, "nan"-like and unparseable
// cells become undefined.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return Undefined()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Undefined()
	}
	return v
}

// RawRow is one untyped record straight from a source file.
type RawRow struct {
	SourceFile string
	Values     map[string]string
}

// RawTable is the concatenation of every monthly file, in filename order.
// Columns is the union of all headers in first-seen order.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether any source file carried the named column.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Conveniences holds the normalized amenity flags of a listing.
type Conveniences struct {
	HasParkingSpace bool
	HasBalcony      bool
	HasElevator     bool
	HasSecurity     bool
	HasStorageRoom  bool
}

// Get returns the flag stored under one of ConvenienceColumns.
func (c Conveniences) Get(column string) bool {
	switch column {
	case ColHasParkingSpace:
		return c.HasParkingSpace
	case ColHasBalcony:
		return c.HasBalcony
	case ColHasElevator:
		return c.HasElevator
	case ColHasSecurity:
		return c.HasSecurity
	case ColHasStorageRoom:
		return c.HasStorageRoom
	}
	return false
}

// Set returns a copy of c with the named flag changed.
func (c Conveniences) Set(column string, v bool) Conveniences {
	switch column {
	case ColHasParkingSpace:
		c.HasParkingSpace = v
	case ColHasBalcony:
		c.HasBalcony = v
	case ColHasElevator:
		c.HasElevator = v
	case ColHasSecurity:
		c.HasSecurity = v
	case ColHasStorageRoom:
		c.HasStorageRoom = v
	}
	return c
}

// Listing is a cleaned, typed apartment record. Numeric fields use
// Undefined() for absent values; integer-valued columns are float64 so the
// sentinel can propagate.
type Listing struct {
	City           string
	Price          float64
	SquareMeters   float64
	Floor          float64
	FloorCount     float64
	BuildYear      float64
	CentreDistance float64
	Ownership      string
	Conveniences   Conveniences
	SourceFile     string

	// Extra carries passthrough columns (id, rooms, ...) that are neither
	// typed nor pruned.
	Extra map[string]string
}

// ListingTable is the Cleaner's output.
type ListingTable struct {
	ExtraColumns []string
	Listings     []Listing
	Policy       MissingValuePolicy
}

// EnrichedListing is a Listing plus the derived analytical columns.
type EnrichedListing struct {
	Listing

	PricePerM2  float64
	BuildingAge float64
	Month       time.Time
	FloorRel    FloorBucket
}

// EnrichedTable is the Feature Deriver's output and the handoff artifact
// consumed by the aggregator and the presentation layer.
type EnrichedTable struct {
	ExtraColumns []string
	Listings     []EnrichedListing
}

// Len returns the number of listings.
func (t *EnrichedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Listings)
}
