package services

import (
	"fmt"
	"io"
	"os"
	"strings"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// InsightOptions selects the parameters of the standard report.
type InsightOptions struct {
	Cities         []string
	BinWidth       float64
	BuiltByCutoff  int
	ExcludedOwners []string
}

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// WithOutput redirects Print, mostly for tests.
func (s *InsightService) WithOutput(w io.Writer) *InsightService {
	s.out = w
	return s
}

// Generate runs the standard aggregations over t.
func (s *InsightService) Generate(t *models.EnrichedTable, opts InsightOptions) (*models.InsightReport, error) {
	bins, err := AvgPriceByDistanceBins(t, opts.Cities, opts.BinWidth)
	if err != nil {
		return nil, fmt.Errorf("distance bins: %w", err)
	}

	metrics := BuildCityMetrics(t, opts.BuiltByCutoff)
	report := &models.InsightReport{
		TotalListings:     t.Len(),
		CityCounts:        CityCounts(t),
		MonthlyPrice:      AvgPriceByMonth(t),
		PriceByCity:       AvgPriceByCity(t),
		BuildingAgeByCity: AvgBuildingAgeByCity(t),
		BuiltByCutoff:     opts.BuiltByCutoff,
		BuiltByCount:      CountBuiltByYear(t, opts.BuiltByCutoff),
		BuiltByShare:      BuiltByShareByCity(t, opts.BuiltByCutoff),
		CityMetrics:       metrics,
		ShareVsPriceCorr:  CityMetricsCorrelation(metrics),
		DistancePriceCorr: DistancePriceCorr(t),
		CorrByCity:        CorrPerCity(t),
		DistanceBins:      bins,
		AgePriceCorr:      AgePriceCorr(t),
		PriceByAgeBin:     MedianPriceByAgeBin(t),
		PriceByOwnership:  AvgPriceByOwnership(t),
		PriceByFloorRel:   AvgPriceByFloorRel(t),
		OwnershipFloor:    OwnershipFloorPivot(t, opts.ExcludedOwners),
		ConvenienceShares: ConvenienceShares(t),
	}

	s.logger.Info("[insights] Aggregated %d listings across %d cities and %d months",
		report.TotalListings, len(report.CityCounts), len(report.MonthlyPrice))
	return report, nil
}

func (s *InsightService) Print(r *models.InsightReport) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 APARTMENT PRICE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	section := func(title string) {
		fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
		fmt.Fprintf(w, "  %s\n", thin)
	}

	section("Overview")
	fmt.Fprintf(w, "  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Cities         : \033[1m%d\033[0m\n", len(r.CityCounts))
	fmt.Fprintf(w, "  Months         : \033[1m%d\033[0m\n", len(r.MonthlyPrice))
	fmt.Fprintln(w)

	section("Average Price per m² by Month")
	if len(r.MonthlyPrice) == 0 {
		fmt.Fprintf(w, "  No monthly data\n")
	}
	for _, m := range r.MonthlyPrice {
		fmt.Fprintf(w, "  %s  \033[1;32m%s\033[0m  (%d)\n", m.Month.Format("2006-01"), num(m.Value), m.Count)
	}
	fmt.Fprintln(w)

	section("Average Price per m² by City")
	printGroups(w, r.PriceByCity, 10)
	fmt.Fprintln(w)

	section("Average Building Age by City")
	printGroups(w, r.BuildingAgeByCity, 10)
	fmt.Fprintln(w)

	section(fmt.Sprintf("Buildings Finished by %d", r.BuiltByCutoff))
	if len(r.CityMetrics) == 0 {
		fmt.Fprintf(w, "  No city metrics\n")
	}
	for _, m := range r.CityMetrics {
		fmt.Fprintf(w, "  %-16s %5d / %-6d share %s  price %s\n",
			truncate(m.City, 16), m.BuiltBy, m.Total, num(m.Share), num(m.PricePerM2))
	}
	fmt.Fprintf(w, "  Share vs price correlation : \033[1m%s\033[0m\n", num(r.ShareVsPriceCorr))
	fmt.Fprintln(w)

	section("Distance to Centre")
	fmt.Fprintf(w, "  Distance vs price correlation : \033[1m%s\033[0m\n", num(r.DistancePriceCorr))
	printGroups(w, r.CorrByCity, 10)
	if r.DistanceBins != nil && len(r.DistanceBins.Bins) > 0 {
		fmt.Fprintf(w, "  %-12s", "km")
		for _, c := range r.DistanceBins.Cities {
			fmt.Fprintf(w, " %10s", truncate(c, 10))
		}
		fmt.Fprintln(w)
		for _, b := range r.DistanceBins.Bins {
			fmt.Fprintf(w, "  %-12s", fmt.Sprintf("%g-%g", b.Lower, b.Upper))
			for _, v := range b.Means {
				fmt.Fprintf(w, " %10s", num(v))
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)

	section("Building Age")
	fmt.Fprintf(w, "  Age vs price correlation : \033[1m%s\033[0m\n", num(r.AgePriceCorr))
	printGroups(w, r.PriceByAgeBin, 0)
	fmt.Fprintln(w)

	section("Ownership and Floor")
	printGroups(w, r.PriceByOwnership, 0)
	printGroups(w, r.PriceByFloorRel, 0)
	fmt.Fprintln(w)

	section("Conveniences (% of listings)")
	for _, c := range r.ConvenienceShares {
		bar := ""
		if !models.IsUndefined(c.Value) {
			bar = strings.Repeat("█", int(c.Value/5))
		}
		fmt.Fprintf(w, "  %-18s %s %s\n", c.Key, bar, num(c.Value))
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// printGroups prints up to limit rows; limit 0 prints everything.
func printGroups(w io.Writer, stats []models.GroupStat, limit int) {
	if len(stats) == 0 {
		fmt.Fprintf(w, "  No data\n")
		return
	}
	for i, s := range stats {
		if limit > 0 && i == limit {
			fmt.Fprintf(w, "  ... %d more\n", len(stats)-limit)
			break
		}
		fmt.Fprintf(w, "  %-30s \033[1;32m%12s\033[0m (%d)\n", truncate(s.Key, 28), num(s.Value), s.Count)
	}
}

func num(v float64) string {
	if models.IsUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

// truncate shortens s to at most max runes so Polish labels are never cut
// inside a multi-byte character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
