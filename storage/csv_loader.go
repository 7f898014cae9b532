package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// CSVLoader discovers monthly listing files and concatenates them into one
// raw table.
type CSVLoader struct {
	logger  *utils.Logger
	workers int
}

// NewCSVLoader creates a loader that parses up to workers files at once.
func NewCSVLoader(logger *utils.Logger, workers int) *CSVLoader {
	return &CSVLoader{logger: logger, workers: workers}
}

type parsedFile struct {
	header []string
	rows   []models.RawRow
}

// Load reads every file in dir matching pattern. Files are parsed
// concurrently but concatenated in ascending filename order. A file that
// cannot be parsed aborts the whole load.
func (l *CSVLoader) Load(ctx context.Context, dir, pattern string) (*models.RawTable, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("loader: invalid pattern %q: %w", pattern, err)
	}

	files := paths[:0]
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil, &models.MissingInputError{Dir: dir, Pattern: pattern}
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	l.logger.Info("[loader] Reading %d files from %s", len(files), dir)

	parsed := make([]*parsedFile, len(files))
	pool := utils.NewWorkerPool(ctx, l.workers)
	for i, path := range files {
		i, path := i, path
		pool.Submit(func(ctx context.Context) error {
			pf, err := parseFile(path)
			if err != nil {
				return err
			}
			parsed[i] = pf
			l.logger.Debug("[loader] %s: %d rows", filepath.Base(path), len(pf.rows))
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	table := &models.RawTable{}
	seen := make(map[string]struct{})
	for _, pf := range parsed {
		for _, col := range pf.header {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				table.Columns = append(table.Columns, col)
			}
		}
		table.Rows = append(table.Rows, pf.rows...)
	}

	l.logger.Info("[loader] Combined %d rows from %d files (%d columns)",
		len(table.Rows), len(files), len(table.Columns))
	return table, nil
}

func parseFile(path string) (*parsedFile, error) {
	name := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, &models.ParseError{File: name, Err: err}
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
	dup := make(map[string]struct{}, len(header))
	for _, h := range header {
		if h == "" {
			continue
		}
		if _, ok := dup[h]; ok {
			return nil, &models.ParseError{File: name, Line: 1, Err: fmt.Errorf("duplicate column %q", h)}
		}
		dup[h] = struct{}{}
	}

	pf := &parsedFile{}
	for _, h := range header {
		if h != "" {
			pf.header = append(pf.header, h)
		}
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toParseError(name, err)
		}

		values := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			values[h] = record[i]
		}
		pf.rows = append(pf.rows, models.RawRow{SourceFile: name, Values: values})
	}
	return pf, nil
}

// normaliseHeader trims header cells and strips a UTF-8 byte order mark.
// Unnamed columns (a pandas index column, for instance) are kept as "" so
// record positions stay aligned, and skipped later.
func normaliseHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func toParseError(file string, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &models.ParseError{File: file, Line: csvErr.Line, Err: csvErr.Err}
	}
	return &models.ParseError{File: file, Err: err}
}
