// Package main implements the apartment-prices CLI: it prepares the enriched
// listing table from the monthly source files and reports on it.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"apartment-prices/config"
	"apartment-prices/services"
	"apartment-prices/storage"
	"apartment-prices/utils"
)

var (
	cfg    *config.Config
	logger *utils.Logger

	// shared pipeline flags
	inputDir    string
	filePattern string
	refDate     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints a failed run once: through the logger when config
// loaded, straight to w otherwise.
func reportError(w io.Writer, err error) {
	if logger == nil {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	logger.Error("%v", err)
	logger.Sync()
}

var rootCmd = &cobra.Command{
	Use:   "apartment-prices",
	Short: "Batch ETL and reporting for Polish apartment listings",
	Long: `apartment-prices combines the monthly apartments_pl_YYYY_MM.csv files into
one cleaned table with derived price-per-m², building age, month and
relative floor columns, then aggregates it for the dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = utils.NewLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&inputDir, "input-dir", "", "directory holding the monthly source files (default INPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&filePattern, "pattern", "", "source file glob (default FILE_PATTERN)")
	rootCmd.PersistentFlags().StringVar(&refDate, "ref-date", "", "reference date for building age, YYYY-MM-DD (default today)")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(compareCmd)
}

func newPipeline() *services.Pipeline {
	loader := storage.NewCSVLoader(logger, cfg.LoadWorkers)
	cleaner := services.NewCleaner(logger, services.CleanOptions{
		DroppedColumns:   cfg.Pipeline.DroppedColumns,
		OwnershipAliases: cfg.Pipeline.OwnershipAliases,
	})
	return services.NewPipeline(logger, loader, cleaner, services.NewFeatureDeriver(logger))
}

// pipelineInput resolves the flag overrides against the loaded config.
func pipelineInput() (services.PipelineInput, error) {
	in := services.PipelineInput{Dir: cfg.InputDir, Pattern: cfg.FilePattern, Reference: time.Now()}
	if inputDir != "" {
		in.Dir = inputDir
	}
	if filePattern != "" {
		in.Pattern = filePattern
	}
	if refDate != "" {
		ref, err := time.Parse("2006-01-02", refDate)
		if err != nil {
			return in, fmt.Errorf("invalid --ref-date %q: %w", refDate, err)
		}
		in.Reference = ref
	}
	return in, nil
}

func connectBackoff() utils.Backoff {
	return utils.Backoff{Attempts: cfg.MaxRetries, Delay: time.Second, Logger: logger}
}
