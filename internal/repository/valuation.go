package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
)

// ValuationRepository persists immutable valuation reports keyed by ID.
type ValuationRepository interface {
	Create(ctx context.Context, report *model.ValuationReport) error
	Get(ctx context.Context, id uuid.UUID) (*model.ValuationReport, error)
}

type valuationRepo struct {
	store *Store
}

func NewValuationRepository(store *Store) ValuationRepository {
	return &valuationRepo{store: store}
}

func (r *valuationRepo) Create(ctx context.Context, report *model.ValuationReport) error {
	cfg, err := json.Marshal(report.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	projections, err := json.Marshal(report.Projections)
	if err != nil {
		return fmt.Errorf("marshal projections: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, r.store.rebind(
		`INSERT INTO valuations (id, config, summary, projections, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		report.ID.String(), string(cfg), string(summary), string(projections),
		fmtTime(report.CreatedAt),
	)
	if err != nil {
		r.store.log.Error("valuation create failed", "valuation_id", report.ID, "error", err)
		return fmt.Errorf("create valuation: %w", err)
	}
	r.store.log.Info("valuation created", "valuation_id", report.ID)
	return nil
}

func (r *valuationRepo) Get(ctx context.Context, id uuid.UUID) (*model.ValuationReport, error) {
	var (
		idStr       string
		cfg         string
		summary     string
		projections string
		createdAt   string
	)
	err := r.store.db.QueryRowContext(ctx, r.store.rebind(
		`SELECT id, config, summary, projections, created_at FROM valuations WHERE id = ?`),
		id.String(),
	).Scan(&idStr, &cfg, &summary, &projections, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan valuation: %w", err)
	}

	report := &model.ValuationReport{CreatedAt: parseTime(createdAt)}
	if report.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("parse valuation id: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &report.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &report.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal([]byte(projections), &report.Projections); err != nil {
		return nil, fmt.Errorf("unmarshal projections: %w", err)
	}
	return report, nil
}
