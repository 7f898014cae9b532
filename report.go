package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apartment-prices/models"
	"apartment-prices/services"
	"apartment-prices/storage"
)

var (
	reportInput string
	fromDB      string
	xlsxPath    string
	binWidth    float64
	cities      []string
	cutoff      int

	filterCity string
	minAge     float64
	maxAge     float64
	minPrice   float64
	maxPrice   float64
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportInput, "input", "", "enriched CSV to report on (default OUTPUT_PATH)")
	f.StringVar(&fromDB, "from-db", "", "read the enriched table from a snapshot instead: sqlite or postgres")
	f.StringVar(&xlsxPath, "xlsx", "", "also export the report as an XLSX workbook (default REPORT_XLSX_PATH)")
	f.Float64Var(&binWidth, "bin-width", 0, "distance bin width in km (default BIN_WIDTH)")
	f.StringSliceVar(&cities, "cities", nil, "cities in the distance pivot, empty for all (default ANALYSIS_CITIES)")
	f.IntVar(&cutoff, "built-by", 0, "build-year cutoff for the old-building share (default BUILT_BY_CUTOFF)")

	f.StringVar(&filterCity, "city", "", "only report on this city")
	f.Float64Var(&minAge, "min-age", 0, "minimum building age")
	f.Float64Var(&maxAge, "max-age", 0, "maximum building age")
	f.Float64Var(&minPrice, "min-price", 0, "minimum price per m²")
	f.Float64Var(&maxPrice, "max-price", 0, "maximum price per m²")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate the enriched table and print the insight report",
	Long: `Read the enriched table written by prepare and print grouped means,
shares, correlations, the monthly trend and the distance pivot.

Examples:
  # Report on the default CSV
  apartment-prices report

  # Report on the SQLite snapshot and export a workbook
  apartment-prices report --from-db sqlite --xlsx reports/insights.xlsx

  # Only Warsaw buildings up to 30 years old
  apartment-prices report --city warszawa --max-age 30`,
	RunE: runReport,
}

func loadEnriched(ctx context.Context) (*models.EnrichedTable, error) {
	switch fromDB {
	case "":
		path := cfg.OutputPath
		if reportInput != "" {
			path = reportInput
		}
		logger.Info("Reading enriched listings from %s", path)
		return storage.ReadEnrichedCSV(path)
	case "sqlite", "postgres":
		reader, err := openReader(ctx, fromDB)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		logger.Info("Reading enriched listings from the %s snapshot", fromDB)
		return reader.FetchAll()
	}
	return nil, fmt.Errorf("unknown --from-db %q (want sqlite or postgres)", fromDB)
}

func openReader(ctx context.Context, kind string) (storage.ListingReader, error) {
	if kind == "postgres" {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), connectBackoff())
		if err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		return pg, nil
	}
	if cfg.SQLitePath == "" {
		return nil, fmt.Errorf("--from-db sqlite needs SQLITE_PATH")
	}
	store, err := storage.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	table, err := loadEnriched(cmd.Context())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	filter := services.ListingFilter{City: filterCity}
	bound := func(name string, v float64) *float64 {
		if flags.Changed(name) {
			return &v
		}
		return nil
	}
	filter.MinAge = bound("min-age", minAge)
	filter.MaxAge = bound("max-age", maxAge)
	filter.MinPrice = bound("min-price", minPrice)
	filter.MaxPrice = bound("max-price", maxPrice)
	table = services.FilterListings(table, filter)

	opts := services.InsightOptions{
		Cities:         cfg.Analysis.Cities,
		BinWidth:       cfg.Analysis.BinWidth,
		BuiltByCutoff:  cfg.Analysis.BuiltByCutoff,
		ExcludedOwners: cfg.Analysis.ExcludedOwners,
	}
	if flags.Changed("cities") {
		opts.Cities = cities
	}
	if flags.Changed("bin-width") {
		opts.BinWidth = binWidth
	}
	if flags.Changed("built-by") {
		opts.BuiltByCutoff = cutoff
	}

	svc := services.NewInsightService(logger)
	report, err := svc.Generate(table, opts)
	if err != nil {
		return err
	}
	svc.Print(report)

	path := cfg.ReportXLSXPath
	if xlsxPath != "" {
		path = xlsxPath
	}
	if path != "" {
		if err := storage.NewXLSXReportWriter(path).Write(report); err != nil {
			return err
		}
		logger.Info("Report workbook saved to %s", path)
	}
	return nil
}
