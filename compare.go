package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"apartment-prices/models"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the drop and fill missing-value policies",
	Long: `Run the pipeline once per missing-value policy over the same input and
print the monthly price-per-m² trend and convenience shares side by side.`,
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	in, err := pipelineInput()
	if err != nil {
		return err
	}

	cmp, err := newPipeline().ComparePolicies(cmd.Context(), in)
	if err != nil {
		return err
	}
	printComparison(cmp)
	return nil
}

func printComparison(c *models.PolicyComparison) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 DROP vs FILL\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  Listings : drop %d | fill %d\n\n", c.Dropped.Len(), c.Filled.Len())

	fmt.Printf("\033[1;33m  Average Price per m² by Month\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  %-10s %14s %14s\n", "month", "drop", "fill")
	filled := make(map[string]float64, len(c.MonthlyFilled))
	for _, m := range c.MonthlyFilled {
		filled[m.Month.Format("2006-01")] = m.Value
	}
	for _, m := range c.MonthlyDropped {
		key := m.Month.Format("2006-01")
		fill, ok := filled[key]
		if !ok {
			fill = models.Undefined()
		}
		fmt.Printf("  %-10s %14s %14s\n", key, num(m.Value), num(fill))
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Conveniences (%% of listings)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for i, d := range c.ConvenienceDropped {
		fill := models.Undefined()
		if i < len(c.ConvenienceFilled) {
			fill = c.ConvenienceFilled[i].Value
		}
		fmt.Printf("  %-18s %10s %10s\n", d.Key, num(d.Value), num(fill))
	}
	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func num(v float64) string {
	if models.IsUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
