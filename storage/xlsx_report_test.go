package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"apartment-prices/models"
)

func sampleReport() *models.InsightReport {
	return &models.InsightReport{
		TotalListings: 3,
		CityCounts:    []models.GroupStat{{Key: "krakow", Value: 2, Count: 2}, {Key: "lodz", Value: 1, Count: 1}},
		MonthlyPrice: []models.MonthStat{
			{Month: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), Value: 6000, Count: 2},
			{Month: time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC), Value: 10000, Count: 1},
		},
		PriceByCity:       []models.GroupStat{{Key: "krakow", Value: 9000, Count: 2}, {Key: "lodz", Value: models.Undefined(), Count: 1}},
		BuiltByCutoff:     2001,
		ShareVsPriceCorr:  models.Undefined(),
		DistancePriceCorr: -0.5,
		AgePriceCorr:      0.1,
		DistanceBins: &models.DistancePivot{
			BinWidth: 1,
			Cities:   []string{"krakow", "lodz"},
			Bins: []models.DistanceBin{
				{Lower: 0, Upper: 1, Means: []float64{9000, models.Undefined()}},
				{Lower: 1, Upper: 2, Means: []float64{models.Undefined(), 7000}},
			},
		},
		OwnershipFloor:    []models.PivotCell{{Row: "condominium", Column: 1, Value: 8000}},
		ConvenienceShares: []models.GroupStat{{Key: models.ColHasBalcony, Value: 33.33, Count: 1}},
	}
}

func TestXLSXReportSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "insights.xlsx")
	require.NoError(t, NewXLSXReportWriter(path).Write(sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		SheetMonthly, SheetCities, SheetCityMetrics, SheetCorrelation, SheetDistanceBins,
		SheetAgeBins, SheetOwnership, SheetOwnerFloor, SheetFloor, SheetConvenience,
	}, f.GetSheetList())

	v, err := f.GetCellValue(SheetMonthly, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2023-01", v)

	v, err = f.GetCellValue(SheetMonthly, "B3")
	require.NoError(t, err)
	assert.Equal(t, "10000", v)

	v, err = f.GetCellValue(SheetDistanceBins, "A3")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", v)

	// undefined means stay empty
	v, err = f.GetCellValue(SheetDistanceBins, "C2")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = f.GetCellValue(SheetCities, "C3")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
