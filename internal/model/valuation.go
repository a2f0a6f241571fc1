package model

import (
	"time"

	"github.com/google/uuid"
)

// ValuationConfig holds the user-supplied projection parameters.
// The per-platform rates are validated as part of the contract but the
// deterministic projection does not consume them yet; they are reserved
// for a platform-weighted calculation.
type ValuationConfig struct {
	SpotifyRate    float64 `json:"spotifyRate" validate:"gte=0,lte=1"`
	AppleMusicRate float64 `json:"appleMusicRate" validate:"gte=0,lte=1"`
	YearOneDecay   int     `json:"yearOneDecay" validate:"gte=0,lte=100"`
	YearTwoDecay   int     `json:"yearTwoDecay" validate:"gte=0,lte=100"`
	YearThreeDecay int     `json:"yearThreeDecay" validate:"gte=0,lte=100"`
}

// ValuationSummary aggregates the headline numbers of a report.
// TotalTracks counts distinct statement dates across records -- a proxy,
// not a true track count.
type ValuationSummary struct {
	TotalTracks          int     `json:"totalTracks"`
	CurrentAnnualRevenue float64 `json:"currentAnnualRevenue"`
	TotalStreams         int64   `json:"totalStreams"`
	ProjectedValue       float64 `json:"projectedValue"`
}

// YearProjection is one (calendar year, projected revenue) pair.
type YearProjection struct {
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
}

// ValuationReport is immutable once created and persisted keyed by ID.
type ValuationReport struct {
	ID          uuid.UUID        `json:"id"`
	Config      ValuationConfig  `json:"config"`
	Summary     ValuationSummary `json:"summary"`
	Projections []YearProjection `json:"projections"`
	CreatedAt   time.Time        `json:"createdAt"`
}
