package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"apartment-prices/models"
)

// XLSX sheet names, one per report section.
const (
	SheetMonthly      = "Monthly"
	SheetCities       = "Cities"
	SheetCityMetrics  = "CityMetrics"
	SheetCorrelation  = "Correlation"
	SheetDistanceBins = "DistanceBins"
	SheetAgeBins      = "AgeBins"
	SheetOwnership    = "Ownership"
	SheetOwnerFloor   = "OwnershipFloor"
	SheetFloor        = "Floor"
	SheetConvenience  = "Conveniences"
)

// XLSXReportWriter exports an insight report as a workbook for the
// presentation layer. Undefined values are left as empty cells.
type XLSXReportWriter struct {
	path string
}

func NewXLSXReportWriter(path string) *XLSXReportWriter {
	return &XLSXReportWriter{path: path}
}

func (w *XLSXReportWriter) Write(r *models.InsightReport) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMonthly); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	monthly := [][]any{{"month", "avg_priceperm2", "listings"}}
	for _, m := range r.MonthlyPrice {
		monthly = append(monthly, []any{m.Month.Format("2006-01"), cell(m.Value), m.Count})
	}

	cities := [][]any{{"city", "listings", "avg_priceperm2", "avg_building_age", "built_by_count", "built_by_share", "distance_corr"}}
	for _, c := range r.CityCounts {
		cities = append(cities, []any{
			c.Key, c.Count,
			cell(lookup(r.PriceByCity, c.Key)),
			cell(lookup(r.BuildingAgeByCity, c.Key)),
			countOf(r.BuiltByCount, c.Key),
			cell(lookup(r.BuiltByShare, c.Key)),
			cell(lookup(r.CorrByCity, c.Key)),
		})
	}

	metrics := [][]any{{"city", "total", "built_by", "share", "avg_priceperm2", "avg_building_age"}}
	for _, m := range r.CityMetrics {
		metrics = append(metrics, []any{m.City, m.Total, m.BuiltBy, cell(m.Share), cell(m.PricePerM2), cell(m.BuildingAge)})
	}

	corr := [][]any{
		{"measure", "value"},
		{"distance_vs_priceperm2", cell(r.DistancePriceCorr)},
		{fmt.Sprintf("built_by_%d_share_vs_price", r.BuiltByCutoff), cell(r.ShareVsPriceCorr)},
		{"building_age_vs_priceperm2", cell(r.AgePriceCorr)},
	}

	ownerFloor := [][]any{{"ownership", "floor", "avg_priceperm2"}}
	for _, c := range r.OwnershipFloor {
		ownerFloor = append(ownerFloor, []any{c.Row, c.Column, cell(c.Value)})
	}

	var bins [][]any
	if r.DistanceBins != nil {
		header := []any{"bin"}
		for _, c := range r.DistanceBins.Cities {
			header = append(header, c)
		}
		bins = append(bins, header)
		for i, b := range r.DistanceBins.Bins {
			row := []any{binLabel(b, i == len(r.DistanceBins.Bins)-1)}
			for _, v := range b.Means {
				row = append(row, cell(v))
			}
			bins = append(bins, row)
		}
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetMonthly, monthly},
		{SheetCities, cities},
		{SheetCityMetrics, metrics},
		{SheetCorrelation, corr},
		{SheetDistanceBins, bins},
		{SheetAgeBins, groupRows("building_age", r.PriceByAgeBin)},
		{SheetOwnership, groupRows("ownership", r.PriceByOwnership)},
		{SheetOwnerFloor, ownerFloor},
		{SheetFloor, groupRows("floor_rel", r.PriceByFloorRel)},
		{SheetConvenience, groupRows("convenience", r.ConvenienceShares)},
	}

	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				return fmt.Errorf("xlsx: new sheet %s: %w", s.name, err)
			}
		}
		for row, values := range s.rows {
			addr, err := excelize.CoordinatesToCellName(1, row+1)
			if err != nil {
				return err
			}
			values := values
			if err := f.SetSheetRow(s.name, addr, &values); err != nil {
				return fmt.Errorf("xlsx: write %s row %d: %w", s.name, row+1, err)
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", w.path, err)
	}
	return nil
}

func groupRows(key string, stats []models.GroupStat) [][]any {
	rows := [][]any{{key, "value", "listings"}}
	for _, s := range stats {
		rows = append(rows, []any{s.Key, cell(s.Value), s.Count})
	}
	return rows
}

// cell maps undefined to an empty cell.
func cell(v float64) any {
	if models.IsUndefined(v) {
		return nil
	}
	return v
}

func lookup(stats []models.GroupStat, key string) float64 {
	for _, s := range stats {
		if s.Key == key {
			return s.Value
		}
	}
	return models.Undefined()
}

func countOf(stats []models.GroupStat, key string) int {
	for _, s := range stats {
		if s.Key == key {
			return s.Count
		}
	}
	return 0
}

func binLabel(b models.DistanceBin, last bool) string {
	closing := ")"
	if last {
		closing = "]"
	}
	return fmt.Sprintf("[%g, %g%s", b.Lower, b.Upper, closing)
}
