package services

import (
	"context"
	"fmt"
	"time"

	"apartment-prices/models"
	"apartment-prices/utils"
)

// RawLoader produces the combined raw table. storage.CSVLoader satisfies it.
type RawLoader interface {
	Load(ctx context.Context, dir, pattern string) (*models.RawTable, error)
}

// PipelineInput carries everything a run depends on, so the same input
// always yields the same table.
type PipelineInput struct {
	Dir       string
	Pattern   string
	Policy    models.MissingValuePolicy
	Reference time.Time
}

// Pipeline runs load → clean → derive. Each stage materializes its whole
// output before the next one starts.
type Pipeline struct {
	Loader  RawLoader
	Cleaner *Cleaner
	Deriver *FeatureDeriver
	logger  *utils.Logger
}

func NewPipeline(logger *utils.Logger, loader RawLoader, cleaner *Cleaner, deriver *FeatureDeriver) *Pipeline {
	return &Pipeline{Loader: loader, Cleaner: cleaner, Deriver: deriver, logger: logger}
}

// Run executes the pipeline with a single missing-value policy.
func (p *Pipeline) Run(ctx context.Context, in PipelineInput) (*models.EnrichedTable, error) {
	raw, err := p.Loader.Load(ctx, in.Dir, in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	return p.process(raw, in.Policy, in.Reference)
}

func (p *Pipeline) process(raw *models.RawTable, policy models.MissingValuePolicy, ref time.Time) (*models.EnrichedTable, error) {
	cleaned, err := p.Cleaner.Clean(raw, policy)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	enriched, err := p.Deriver.Derive(cleaned, ref)
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}
	p.logger.Info("[pipeline] %s policy produced %d enriched listings", policy, enriched.Len())
	return enriched, nil
}

// ComparePolicies loads the input once and runs both the drop and the fill
// policy over it. in.Policy is ignored.
func (p *Pipeline) ComparePolicies(ctx context.Context, in PipelineInput) (*models.PolicyComparison, error) {
	raw, err := p.Loader.Load(ctx, in.Dir, in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	dropped, err := p.process(raw, models.PolicyDrop, in.Reference)
	if err != nil {
		return nil, err
	}
	filled, err := p.process(raw, models.PolicyFill, in.Reference)
	if err != nil {
		return nil, err
	}

	return &models.PolicyComparison{
		Dropped:            dropped,
		Filled:             filled,
		MonthlyDropped:     AvgPriceByMonth(dropped),
		MonthlyFilled:      AvgPriceByMonth(filled),
		ConvenienceDropped: ConvenienceShares(dropped),
		ConvenienceFilled:  ConvenienceShares(filled),
	}, nil
}
