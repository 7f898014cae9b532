package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apartment-prices/models"
	"apartment-prices/storage"
)

var (
	outputPath  string
	policyFlag  string
	usePostgres bool
	sqlitePath  string
)

func init() {
	prepareCmd.Flags().StringVar(&outputPath, "output", "", "enriched CSV path (default OUTPUT_PATH)")
	prepareCmd.Flags().StringVar(&policyFlag, "policy", "", "missing-value policy: drop or fill (default MISSING_POLICY)")
	prepareCmd.Flags().BoolVar(&usePostgres, "postgres", false, "also store the enriched table in PostgreSQL")
	prepareCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "also store the enriched table in this SQLite file (default SQLITE_PATH)")
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Load, clean and enrich the monthly files into one CSV",
	Long: `Load every monthly source file, normalise it, resolve missing floor,
floorCount and buildYear values with the selected policy, derive the
analytical columns and write the enriched table.

Examples:
  # Drop incomplete rows (default)
  apartment-prices prepare --input-dir data

  # Impute medians and pin the reference date
  apartment-prices prepare --policy fill --ref-date 2024-01-01 --output data/data_filled.csv`,
	RunE: runPrepare,
}

func runPrepare(cmd *cobra.Command, args []string) error {
	in, err := pipelineInput()
	if err != nil {
		return err
	}
	policy := cfg.Policy
	if policyFlag != "" {
		policy = policyFlag
	}
	if in.Policy, err = models.ParsePolicy(policy); err != nil {
		return err
	}
	out := cfg.OutputPath
	if outputPath != "" {
		out = outputPath
	}

	logger.Info("=== Apartment listings preparation starting ===")
	logger.Info("Config | input: %s/%s | policy: %s | reference: %s | workers: %d",
		in.Dir, in.Pattern, in.Policy, in.Reference.Format("2006-01-02"), cfg.LoadWorkers)

	table, err := newPipeline().Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	sinks, err := openSinks(cmd.Context(), out)
	for _, s := range sinks {
		defer s.writer.Close()
	}
	if err != nil {
		return err
	}
	if err := writeSinks(table, sinks); err != nil {
		return err
	}

	fmt.Printf("\n  Done. %d listings → %s\n\n", table.Len(), out)
	return nil
}

type sink struct {
	name   string
	writer storage.ListingWriter
}

// openSinks returns the configured snapshot stores followed by the CSV
// writer. The CSV rename is the commit point of a run, so it goes last: a
// snapshot failure leaves the previous CSV in place. Sinks opened before a
// failure are still returned so they can be closed.
func openSinks(ctx context.Context, csvPath string) ([]sink, error) {
	var sinks []sink

	if usePostgres {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), connectBackoff())
		if err != nil {
			return sinks, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		sinks = append(sinks, sink{name: "PostgreSQL (table: listings)", writer: pg})
	}

	path := cfg.SQLitePath
	if sqlitePath != "" {
		path = sqlitePath
	}
	if path != "" {
		store, err := storage.NewSQLiteStore(path)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sink{name: path, writer: store})
	}
	return append(sinks, sink{name: csvPath, writer: storage.NewCSVWriter(csvPath)}), nil
}

// writeSinks writes the table to each sink in order and stops at the first
// failure.
func writeSinks(table *models.EnrichedTable, sinks []sink) error {
	for _, s := range sinks {
		if err := s.writer.Write(table); err != nil {
			return fmt.Errorf("%s write: %w", s.name, err)
		}
		logger.Info("Enriched listings saved to %s", s.name)
	}
	return nil
}
