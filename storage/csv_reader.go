package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"apartment-prices/models"
)

// ReadEnrichedCSV reloads a file produced by CSVWriter so the aggregator
// can run without repeating the preparation pipeline. Empty numeric cells
// come back as undefined.
func ReadEnrichedCSV(path string) (*models.EnrichedTable, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.ParseError{File: name, Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, toParseError(name, err)
	}
	header = normaliseHeader(header)

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	known := make(map[string]struct{}, len(baseColumns)+len(derivedColumns))
	for _, col := range append(append([]string{}, baseColumns...), derivedColumns...) {
		if _, ok := index[col]; !ok {
			return nil, &models.SchemaError{Column: col, Reason: "missing from " + name}
		}
		known[col] = struct{}{}
	}

	t := &models.EnrichedTable{}
	for _, h := range header {
		if _, ok := known[h]; !ok && h != "" {
			t.ExtraColumns = append(t.ExtraColumns, h)
		}
	}

	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toParseError(name, err)
		}
		line++

		get := func(col string) string { return record[index[col]] }
		l, err := decodeRow(get, t.ExtraColumns)
		if err != nil {
			return nil, &models.ParseError{File: name, Line: line, Err: err}
		}
		t.Listings = append(t.Listings, l)
	}
	return t, nil
}

func decodeRow(get func(string) string, extra []string) (models.EnrichedListing, error) {
	l := models.EnrichedListing{
		Listing: models.Listing{
			City:           get(models.ColCity),
			Price:          models.ParseNumber(get(models.ColPrice)),
			SquareMeters:   models.ParseNumber(get(models.ColSquareMeters)),
			Floor:          models.ParseNumber(get(models.ColFloor)),
			FloorCount:     models.ParseNumber(get(models.ColFloorCount)),
			BuildYear:      models.ParseNumber(get(models.ColBuildYear)),
			CentreDistance: models.ParseNumber(get(models.ColCentreDistance)),
			Ownership:      get(models.ColOwnership),
			SourceFile:     get(models.ColSourceFile),
		},
		PricePerM2:  models.ParseNumber(get(models.ColPricePerM2)),
		BuildingAge: models.ParseNumber(get(models.ColBuildingAge)),
	}
	for _, col := range models.ConvenienceColumns {
		l.Conveniences = l.Conveniences.Set(col, strings.EqualFold(strings.TrimSpace(get(col)), "true"))
	}
	if len(extra) > 0 {
		l.Extra = make(map[string]string, len(extra))
		for _, col := range extra {
			l.Extra[col] = get(col)
		}
	}

	if m := strings.TrimSpace(get(models.ColMonth)); m != "" {
		month, err := time.Parse(monthLayout, m)
		if err != nil {
			return l, fmt.Errorf("month %q: %w", m, err)
		}
		l.Month = month
	}

	bucket, err := models.ParseFloorBucket(get(models.ColFloorRel))
	if err != nil {
		return l, err
	}
	l.FloorRel = bucket
	return l, nil
}
