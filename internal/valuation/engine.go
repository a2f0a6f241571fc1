// Package valuation turns the latest completed batch's records into a
// deterministic multi-year discounted revenue projection.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
)

const (
	// ProjectionYears is the fixed projection horizon.
	ProjectionYears = 7
	// DiscountRate is the fixed annual rate used for the present-value sum.
	DiscountRate = 0.10
)

type Engine struct {
	batches repository.BatchRepository
	log     *slog.Logger
}

func NewEngine(batches repository.BatchRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{batches: batches, log: logger}
}

// ValidateConfig checks every field is present and in range before any
// computation happens.
func ValidateConfig(cfg model.ValuationConfig) error {
	if cfg.SpotifyRate < 0 || cfg.SpotifyRate > 1 {
		return fmt.Errorf("%w: spotifyRate must be within [0,1]", common.ErrValidation)
	}
	if cfg.AppleMusicRate < 0 || cfg.AppleMusicRate > 1 {
		return fmt.Errorf("%w: appleMusicRate must be within [0,1]", common.ErrValidation)
	}
	for _, decay := range []struct {
		name  string
		value int
	}{
		{"yearOneDecay", cfg.YearOneDecay},
		{"yearTwoDecay", cfg.YearTwoDecay},
		{"yearThreeDecay", cfg.YearThreeDecay},
	} {
		if decay.value < 0 || decay.value > 100 {
			return fmt.Errorf("%w: %s must be within [0,100]", common.ErrValidation, decay.name)
		}
	}
	return nil
}

// Calculate produces a valuation report over the most recently completed
// batch. Fails with common.ErrNoData when no completed batch (or record)
// exists, and common.ErrValidation for out-of-range config.
func (e *Engine) Calculate(ctx context.Context, cfg model.ValuationConfig) (*model.ValuationReport, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	batch, err := e.batches.LatestComplete(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: no completed batch", common.ErrNoData)
	}
	if err != nil {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}
	if len(batch.Results) == 0 {
		return nil, fmt.Errorf("%w: batch %s has no records", common.ErrNoData, batch.ID)
	}

	byPlatform := RevenueByPlatform(batch.Results)
	var baseRevenue float64
	for _, revenue := range byPlatform {
		baseRevenue += revenue
	}

	projections := Project(baseRevenue, cfg, time.Now().Year())
	projectedValue := PresentValue(projections)

	report := &model.ValuationReport{
		ID:     uuid.New(),
		Config: cfg,
		Summary: model.ValuationSummary{
			TotalTracks:          distinctDates(batch.Results),
			CurrentAnnualRevenue: projections[0].Revenue,
			TotalStreams:         totalStreams(batch.Results),
			ProjectedValue:       projectedValue,
		},
		Projections: projections,
		CreatedAt:   time.Now().UTC(),
	}

	e.log.Info("valuation.calculated",
		"valuation_id", report.ID,
		"batch_id", batch.ID,
		"records", len(batch.Results),
		"base_revenue", baseRevenue,
		"projected_value", projectedValue,
	)
	return report, nil
}

// RevenueByPlatform groups record revenue by platform. The grouping is kept
// for the platform breakdown even though the summary only needs the total.
func RevenueByPlatform(records []model.StreamRecord) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range records {
		out[r.Platform] += r.Revenue
	}
	return out
}

// Project applies the tiered decay year over year. Each year's revenue is
// rounded to the nearest unit before being carried forward, so rounding
// compounds across the horizon.
func Project(baseRevenue float64, cfg model.ValuationConfig, startYear int) []model.YearProjection {
	out := make([]model.YearProjection, 0, ProjectionYears)
	prev := baseRevenue
	for i := 0; i < ProjectionYears; i++ {
		decay := decayForYear(cfg, i)
		revenue := math.Round(prev * (1 - float64(decay)/100))
		out = append(out, model.YearProjection{Year: startYear + i, Revenue: revenue})
		prev = revenue
	}
	return out
}

// decayForYear picks the decay tier: years 1-2, 3-4, then 5 onward.
func decayForYear(cfg model.ValuationConfig, i int) int {
	switch {
	case i < 2:
		return cfg.YearOneDecay
	case i < 4:
		return cfg.YearTwoDecay
	default:
		return cfg.YearThreeDecay
	}
}

// PresentValue discounts the projected revenues back to today at the fixed
// annual rate and rounds the sum to the nearest unit.
func PresentValue(projections []model.YearProjection) float64 {
	var sum float64
	for i, p := range projections {
		sum += p.Revenue / math.Pow(1+DiscountRate, float64(i+1))
	}
	return math.Round(sum)
}

func distinctDates(records []model.StreamRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.Date] = struct{}{}
	}
	return len(seen)
}

func totalStreams(records []model.StreamRecord) int64 {
	var sum int64
	for _, r := range records {
		sum += r.Streams
	}
	return sum
}
