package services

import (
	"sort"
	"strings"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// requiredColumns must be present in the combined header; without them the
// derived columns cannot be computed.
var requiredColumns = []string{
	models.ColCity, models.ColPrice, models.ColSquareMeters,
	models.ColFloor, models.ColFloorCount, models.ColBuildYear,
}

// typedColumns are mapped onto Listing fields; everything else that is not
// pruned travels in Listing.Extra.
var typedColumns = map[string]struct{}{
	models.ColCity: {}, models.ColPrice: {}, models.ColSquareMeters: {},
	models.ColFloor: {}, models.ColFloorCount: {}, models.ColBuildYear: {},
	models.ColCentreDistance: {}, models.ColOwnership: {},
	models.ColHasParkingSpace: {}, models.ColHasBalcony: {}, models.ColHasElevator: {},
	models.ColHasSecurity: {}, models.ColHasStorageRoom: {},
	models.ColSourceFile: {},
	// derived columns are recomputed, never passed through
	models.ColPricePerM2: {}, models.ColBuildingAge: {}, models.ColMonth: {}, models.ColFloorRel: {},
}

// CleanOptions configures normalization.
type CleanOptions struct {
	DroppedColumns   []string
	OwnershipAliases map[string]string
}

// Cleaner turns the raw combined table into typed listings and resolves
// missing floor/floorCount/buildYear values with one policy.
type Cleaner struct {
	logger  *utils.Logger
	dropped map[string]struct{}
	aliases map[string]string
}

// NewCleaner creates a Cleaner with the given logger and options.
func NewCleaner(logger *utils.Logger, opts CleanOptions) *Cleaner {
	dropped := make(map[string]struct{}, len(opts.DroppedColumns))
	for _, c := range opts.DroppedColumns {
		dropped[c] = struct{}{}
	}
	aliases := make(map[string]string, len(opts.OwnershipAliases))
	for k, v := range opts.OwnershipAliases {
		aliases[normaliseLabel(k)] = v
	}
	return &Cleaner{logger: logger, dropped: dropped, aliases: aliases}
}

// Clean returns a new ListingTable; raw is not modified.
func (c *Cleaner) Clean(raw *models.RawTable, policy models.MissingValuePolicy) (*models.ListingTable, error) {
	if policy != models.PolicyDrop && policy != models.PolicyFill {
		return nil, models.ErrUnknownPolicy
	}
	for _, col := range requiredColumns {
		if !raw.HasColumn(col) {
			return nil, &models.SchemaError{Column: col}
		}
	}

	out := &models.ListingTable{Policy: policy}
	for _, col := range raw.Columns {
		if _, typed := typedColumns[col]; typed {
			continue
		}
		if _, drop := c.dropped[col]; drop {
			continue
		}
		out.ExtraColumns = append(out.ExtraColumns, col)
	}

	listings := make([]models.Listing, 0, len(raw.Rows))
	var badNumeric int
	for _, r := range raw.Rows {
		l := c.toListing(r, out.ExtraColumns)
		if models.IsUndefined(l.Price) || models.IsUndefined(l.SquareMeters) {
			badNumeric++
		}
		listings = append(listings, l)
	}
	if badNumeric > 0 {
		c.logger.Warn("[cleaner] %d rows have a missing or non-numeric price/squareMeters", badNumeric)
	}

	switch policy {
	case models.PolicyDrop:
		out.Listings = dropIncomplete(listings)
	case models.PolicyFill:
		filled, err := c.fillMedians(listings)
		if err != nil {
			return nil, err
		}
		out.Listings = filled
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings with %s policy (dropped %d)",
		len(raw.Rows), len(out.Listings), policy, len(raw.Rows)-len(out.Listings))
	return out, nil
}

func (c *Cleaner) toListing(r models.RawRow, extraColumns []string) models.Listing {
	v := r.Values
	l := models.Listing{
		City:           normaliseLabel(v[models.ColCity]),
		Price:          models.ParseNumber(v[models.ColPrice]),
		SquareMeters:   models.ParseNumber(v[models.ColSquareMeters]),
		Floor:          models.ParseNumber(v[models.ColFloor]),
		FloorCount:     models.ParseNumber(v[models.ColFloorCount]),
		BuildYear:      models.ParseNumber(v[models.ColBuildYear]),
		CentreDistance: models.ParseNumber(v[models.ColCentreDistance]),
		Ownership:      c.normaliseOwnership(v[models.ColOwnership]),
		SourceFile:     r.SourceFile,
	}
	for _, col := range models.ConvenienceColumns {
		l.Conveniences = l.Conveniences.Set(col, isYes(v[col]))
	}
	if len(extraColumns) > 0 {
		l.Extra = make(map[string]string, len(extraColumns))
		for _, col := range extraColumns {
			l.Extra[col] = v[col]
		}
	}
	return l
}

// isYes is deliberately lossy: "no", "unknown" and empty all map to false.
func isYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

func (c *Cleaner) normaliseOwnership(s string) string {
	label := normaliseLabel(s)
	if canonical, ok := c.aliases[label]; ok {
		return canonical
	}
	return label
}

func normaliseLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dropIncomplete(listings []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if models.IsUndefined(l.Floor) || models.IsUndefined(l.FloorCount) || models.IsUndefined(l.BuildYear) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// fillMedians replaces undefined floor/floorCount/buildYear values with the
// column median over the full combined table.
func (c *Cleaner) fillMedians(listings []models.Listing) ([]models.Listing, error) {
	columns := []struct {
		name string
		get  func(*models.Listing) *float64
	}{
		{models.ColFloor, func(l *models.Listing) *float64 { return &l.Floor }},
		{models.ColFloorCount, func(l *models.Listing) *float64 { return &l.FloorCount }},
		{models.ColBuildYear, func(l *models.Listing) *float64 { return &l.BuildYear }},
	}

	out := make([]models.Listing, len(listings))
	copy(out, listings)

	for _, col := range columns {
		values := make([]float64, 0, len(out))
		for i := range out {
			if v := *col.get(&out[i]); !models.IsUndefined(v) {
				values = append(values, v)
			}
		}
		median := Median(values)
		if models.IsUndefined(median) {
			return nil, &models.SchemaError{Column: col.name, Reason: "no values to impute from"}
		}

		filled := 0
		for i := range out {
			if p := col.get(&out[i]); models.IsUndefined(*p) {
				*p = median
				filled++
			}
		}
		c.logger.Debug("[cleaner] Filled %d missing %s values with median %g", filled, col.name, median)
	}
	return out, nil
}

// Median returns the middle value of values, averaging the two central
// values for even counts, or undefined for an empty slice. values is not
// reordered.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return models.Undefined()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
