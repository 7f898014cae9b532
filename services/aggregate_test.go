package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-prices/models"
)

func month(m time.Month) time.Time { return time.Date(2023, m, 1, 0, 0, 0, 0, time.UTC) }

func enriched(city string, ppm2, dist, buildYear float64, m time.Month) models.EnrichedListing {
	return models.EnrichedListing{
		Listing: models.Listing{
			City:           city,
			Price:          ppm2 * 50,
			SquareMeters:   50,
			Floor:          1,
			FloorCount:     5,
			BuildYear:      buildYear,
			CentreDistance: dist,
			Ownership:      "condominium",
		},
		PricePerM2:  ppm2,
		BuildingAge: BuildingAge(buildYear, refDate),
		Month:       month(m),
		FloorRel:    models.FloorLow,
	}
}

func sampleTable() *models.EnrichedTable {
	return &models.EnrichedTable{Listings: []models.EnrichedListing{
		enriched("warszawa", 15000, 1.0, 2015, time.January),
		enriched("warszawa", 13000, 3.5, 1995, time.February),
		enriched("warszawa", 11000, 6.0, 1970, time.February),
		enriched("krakow", 14000, 0.5, 2000, time.January),
		enriched("krakow", 12000, 2.5, 2020, time.January),
		enriched("lodz", 7000, 2.0, 1960, time.February),
	}}
}

func TestCityCounts(t *testing.T) {
	got := CityCounts(sampleTable())
	require.Len(t, got, 3)
	assert.Equal(t, "warszawa", got[0].Key)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, "krakow", got[1].Key)
	assert.Equal(t, "lodz", got[2].Key)
}

func TestAvgPriceByMonth(t *testing.T) {
	got := AvgPriceByMonth(sampleTable())
	require.Len(t, got, 2)
	assert.Equal(t, month(time.January), got[0].Month)
	assert.InDelta(t, (15000.0+14000+12000)/3, got[0].Value, 1e-9)
	assert.InDelta(t, (13000.0+11000+7000)/3, got[1].Value, 1e-9)
	assert.Equal(t, 3, got[1].Count)
}

func TestAvgPriceByCityUndefinedLast(t *testing.T) {
	tbl := sampleTable()
	tbl.Listings = append(tbl.Listings, enriched("szczecin", models.Undefined(), 1, 2000, time.March))

	got := AvgPriceByCity(tbl)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"krakow", "warszawa", "lodz", "szczecin"},
		[]string{got[0].Key, got[1].Key, got[2].Key, got[3].Key})
	assert.True(t, models.IsUndefined(got[3].Value))
}

func TestAvgBuildingAgeByCity(t *testing.T) {
	got := AvgBuildingAgeByCity(sampleTable())
	require.Len(t, got, 3)
	assert.Equal(t, "krakow", got[0].Key)
	assert.InDelta(t, 14.0, got[0].Value, 1e-9)
	assert.Equal(t, "lodz", got[2].Key)
}

func TestBuiltByCountAndShare(t *testing.T) {
	tbl := sampleTable()

	counts := CountBuiltByYear(tbl, 2001)
	require.Len(t, counts, 3)
	assert.Equal(t, "warszawa", counts[0].Key)
	assert.Equal(t, 2, counts[0].Count)

	shares := BuiltByShareByCity(tbl, 2001)
	byKey := map[string]float64{}
	for _, s := range shares {
		byKey[s.Key] = s.Value
	}
	assert.InDelta(t, 2.0/3, byKey["warszawa"], 1e-9)
	assert.InDelta(t, 0.5, byKey["krakow"], 1e-9)
	assert.InDelta(t, 1.0, byKey["lodz"], 1e-9)
	assert.Equal(t, "krakow", shares[0].Key)

	none := BuiltByShareByCity(tbl, 1900)
	for _, s := range none {
		assert.Equal(t, 0.0, s.Value, s.Key)
	}
	assert.Empty(t, CountBuiltByYear(tbl, 1900))
}

func TestBuildCityMetricsAndCorrelation(t *testing.T) {
	metrics := BuildCityMetrics(sampleTable(), 2001)
	require.Len(t, metrics, 3)
	assert.Equal(t, "krakow", metrics[0].City)
	assert.Equal(t, 2, metrics[0].Total)
	assert.Equal(t, 1, metrics[0].BuiltBy)
	assert.InDelta(t, 13000.0, metrics[0].PricePerM2, 1e-9)

	// lodz: share 1, cheapest; krakow: share .5, priciest
	corr := CityMetricsCorrelation(metrics)
	assert.Less(t, corr, 0.0)
	assert.True(t, models.IsUndefined(CityMetricsCorrelation(metrics[:1])))
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, -1.0, Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.True(t, models.IsUndefined(Pearson([]float64{1}, []float64{1})))
	assert.True(t, models.IsUndefined(Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.InDelta(t, 1.0, Pearson(
		[]float64{1, models.Undefined(), 2, 3},
		[]float64{1, 100, 2, 3}), 1e-12)
}

func TestCorrelationsWithinRange(t *testing.T) {
	tbl := sampleTable()
	for _, c := range []float64{DistancePriceCorr(tbl), AgePriceCorr(tbl)} {
		assert.GreaterOrEqual(t, c, -1.0)
		assert.LessOrEqual(t, c, 1.0)
	}
	assert.Less(t, DistancePriceCorr(tbl), 0.0)

	perCity := CorrPerCity(tbl)
	require.Len(t, perCity, 3)
	assert.Equal(t, "lodz", perCity[2].Key)
	assert.True(t, models.IsUndefined(perCity[2].Value))
}

func TestAvgPriceByDistanceBins(t *testing.T) {
	pivot, err := AvgPriceByDistanceBins(sampleTable(), []string{"warszawa", "krakow"}, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"krakow", "warszawa"}, pivot.Cities)
	// max distance 6.0 → ceil(6/2) = 3 bins, 6.0 lands in the closed last bin
	require.Len(t, pivot.Bins, 3)
	assert.Equal(t, 0.0, pivot.Bins[0].Lower)
	assert.Equal(t, 6.0, pivot.Bins[2].Upper)

	assert.InDelta(t, 14000.0, pivot.Mean("krakow", 0), 1e-9)
	assert.InDelta(t, 12000.0, pivot.Mean("krakow", 1), 1e-9)
	assert.True(t, models.IsUndefined(pivot.Mean("krakow", 2)))
	assert.InDelta(t, 15000.0, pivot.Mean("warszawa", 0), 1e-9)
	assert.InDelta(t, 13000.0, pivot.Mean("warszawa", 1), 1e-9)
	assert.InDelta(t, 11000.0, pivot.Mean("warszawa", 2), 1e-9)
	assert.True(t, models.IsUndefined(pivot.Mean("lodz", 0)))
}

func TestAvgPriceByDistanceBinsCityCase(t *testing.T) {
	pivot, err := AvgPriceByDistanceBins(sampleTable(), []string{"Krakow", " WARSZAWA"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"krakow", "warszawa"}, pivot.Cities)
	assert.Len(t, pivot.Bins, 3)
}

func TestAvgPriceByDistanceBinsAllCities(t *testing.T) {
	pivot, err := AvgPriceByDistanceBins(sampleTable(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"krakow", "lodz", "warszawa"}, pivot.Cities)
	assert.Len(t, pivot.Bins, 6)
	assert.InDelta(t, 7000.0, pivot.Mean("lodz", 2), 1e-9)
}

func TestAvgPriceByDistanceBinsInvalidWidth(t *testing.T) {
	for _, w := range []float64{0, -1} {
		_, err := AvgPriceByDistanceBins(sampleTable(), nil, w)
		assert.True(t, errors.Is(err, models.ErrInvalidBinWidth), "width %v", w)
	}
}

func TestAvgPriceByDistanceBinsTooManyBins(t *testing.T) {
	// 6 km at 1e-15 needs 6e15 bins; at 5e-324 the quotient overflows to +Inf.
	for _, w := range []float64{1e-15, 5e-324} {
		var err error
		require.NotPanics(t, func() {
			_, err = AvgPriceByDistanceBins(sampleTable(), nil, w)
		}, "width %v", w)
		require.Error(t, err, "width %v", w)
		assert.True(t, errors.Is(err, models.ErrInvalidBinWidth), "width %v", w)
		assert.Contains(t, err.Error(), "too many bins")
	}
}

func TestBinCount(t *testing.T) {
	n, err := BinCount(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = BinCount(2.5, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = BinCount(MaxDistanceBins, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxDistanceBins, n)

	_, err = BinCount(MaxDistanceBins+1, 1)
	assert.ErrorIs(t, err, models.ErrInvalidBinWidth)
	_, err = BinCount(6, 5e-324)
	assert.ErrorIs(t, err, models.ErrInvalidBinWidth)
}

func TestBinIndex(t *testing.T) {
	assert.Equal(t, 0, BinIndex(0, 1, 3))
	assert.Equal(t, 2, BinIndex(2.5, 1, 3))
	assert.Equal(t, 2, BinIndex(3, 1, 3))
	assert.Equal(t, -1, BinIndex(-0.5, 1, 3))
	assert.Equal(t, -1, BinIndex(models.Undefined(), 1, 3))
}

func TestFilterListings(t *testing.T) {
	tbl := sampleTable()
	minAge, maxAge := 10.0, 40.0
	maxPrice := 14000.0

	got := FilterListings(tbl, ListingFilter{City: "warszawa", MinAge: &minAge, MaxAge: &maxAge})
	require.Equal(t, 1, got.Len())
	assert.Equal(t, 13000.0, got.Listings[0].PricePerM2)

	got = FilterListings(tbl, ListingFilter{MaxPrice: &maxPrice})
	assert.Equal(t, 5, got.Len())

	// City labels are compared the way the Cleaner stores them.
	got = FilterListings(tbl, ListingFilter{City: " Warszawa "})
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, 6, tbl.Len())
}

func TestMedianPriceByAgeBin(t *testing.T) {
	got := MedianPriceByAgeBin(sampleTable())
	require.Len(t, got, 6)
	assert.Equal(t, "0-20", got[0].Key)
	// ages 9 and 4 fall in 0-20
	assert.InDelta(t, 13500.0, got[0].Value, 1e-9)
	assert.Equal(t, 2, got[0].Count)
	assert.True(t, models.IsUndefined(got[5].Value))
}

func TestOwnershipFloorPivot(t *testing.T) {
	tbl := sampleTable()
	tbl.Listings[0].Ownership = "share"
	tbl.Listings[1].Floor = 3

	got := OwnershipFloorPivot(tbl, []string{"share"})
	require.Len(t, got, 2)
	assert.Equal(t, got, OwnershipFloorPivot(tbl, []string{" Share"}))
	assert.Equal(t, models.PivotCell{Row: "condominium", Column: 1, Value: (11000.0 + 14000 + 12000 + 7000) / 4}, got[0])
	assert.Equal(t, 3.0, got[1].Column)
	assert.Equal(t, 13000.0, got[1].Value)
}

func TestConvenienceShares(t *testing.T) {
	tbl := sampleTable()
	tbl.Listings[0].Conveniences.HasBalcony = true
	tbl.Listings[1].Conveniences.HasBalcony = true
	tbl.Listings[2].Conveniences.HasElevator = true

	got := ConvenienceShares(tbl)
	require.Len(t, got, len(models.ConvenienceColumns))
	byKey := map[string]float64{}
	for _, s := range got {
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, 33.33, byKey[models.ColHasBalcony])
	assert.Equal(t, 16.67, byKey[models.ColHasElevator])
	assert.Equal(t, 0.0, byKey[models.ColHasSecurity])

	for _, s := range ConvenienceShares(&models.EnrichedTable{}) {
		assert.True(t, models.IsUndefined(s.Value))
	}
}
