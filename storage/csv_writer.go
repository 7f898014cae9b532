package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"apartment-prices/models"
)

// baseColumns is the canonical order of typed columns in the enriched file.
var baseColumns = []string{
	models.ColCity, models.ColPrice, models.ColSquareMeters, models.ColFloor,
	models.ColFloorCount, models.ColBuildYear, models.ColCentreDistance, models.ColOwnership,
	models.ColHasParkingSpace, models.ColHasBalcony, models.ColHasElevator,
	models.ColHasSecurity, models.ColHasStorageRoom, models.ColSourceFile,
}

var derivedColumns = []string{
	models.ColPricePerM2, models.ColBuildingAge, models.ColMonth, models.ColFloorRel,
}

const monthLayout = "2006-01-02"

// CSVWriter writes the enriched table to a single delimited file.
type CSVWriter struct {
	path string
}

// NewCSVWriter returns a writer targeting path. Nothing touches the disk
// until Write is called.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Header returns the column order used for t.
func Header(t *models.EnrichedTable) []string {
	header := make([]string, 0, len(baseColumns)+len(t.ExtraColumns)+len(derivedColumns))
	header = append(header, baseColumns...)
	header = append(header, t.ExtraColumns...)
	header = append(header, derivedColumns...)
	return header
}

// Write renders t into a temp file next to the target and renames it into
// place, so a failed write never leaves a partial output file.
// Intermediate directories are created automatically.
func (c *CSVWriter) Write(t *models.EnrichedTable) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header(t)); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for i := range t.Listings {
		if err := w.Write(encodeRow(&t.Listings[i], t.ExtraColumns)); err != nil {
			return fmt.Errorf("csv: write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("csv: move into place: %w", err)
	}
	committed = true
	return nil
}

// Close is a no-op; Write owns its file handle.
func (c *CSVWriter) Close() error { return nil }

func encodeRow(l *models.EnrichedListing, extra []string) []string {
	row := []string{
		l.City,
		formatFloat(l.Price),
		formatFloat(l.SquareMeters),
		formatFloat(l.Floor),
		formatFloat(l.FloorCount),
		formatFloat(l.BuildYear),
		formatFloat(l.CentreDistance),
		l.Ownership,
	}
	for _, col := range models.ConvenienceColumns {
		row = append(row, formatBool(l.Conveniences.Get(col)))
	}
	row = append(row, l.SourceFile)
	for _, col := range extra {
		row = append(row, l.Extra[col])
	}
	row = append(row,
		formatFloat(l.PricePerM2),
		formatFloat(l.BuildingAge),
		formatMonth(l),
		string(l.FloorRel),
	)
	return row
}

func formatFloat(v float64) string {
	if models.IsUndefined(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatMonth(l *models.EnrichedListing) string {
	if l.Month.IsZero() {
		return ""
	}
	return l.Month.Format(monthLayout)
}
