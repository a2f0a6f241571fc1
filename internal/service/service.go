// Package service is the facade the transport layer (and the CLI) consumes:
// submit a batch, poll its status, request and fetch valuations.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/pipeline"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
	"github.com/royaltyiq/catalog-valuator/internal/valuation"
)

type Service struct {
	batches      repository.BatchRepository
	valuations   repository.ValuationRepository
	orchestrator *pipeline.Orchestrator
	engine       *valuation.Engine
	validate     *validator.Validate
	log          *slog.Logger
}

func New(
	batches repository.BatchRepository,
	valuations repository.ValuationRepository,
	orchestrator *pipeline.Orchestrator,
	engine *valuation.Engine,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		batches:      batches,
		valuations:   valuations,
		orchestrator: orchestrator,
		engine:       engine,
		validate:     validator.New(),
		log:          logger,
	}
}

// SubmitBatch creates the batch record and starts processing in the
// background; callers poll GetBatchStatus for progress.
func (s *Service) SubmitBatch(ctx context.Context, files []string) (uuid.UUID, error) {
	batch, err := s.orchestrator.Submit(ctx, files)
	if err != nil {
		return uuid.Nil, err
	}

	go func() {
		// Detached from the request context: the batch outlives the upload.
		if err := s.orchestrator.Run(context.Background(), batch.ID, files); err != nil {
			s.log.Warn("batch run finished with error", "batch_id", batch.ID, "error", err)
		}
	}()

	return batch.ID, nil
}

// GetBatchStatus returns the polling view of a batch. Reading never mutates
// batch state.
func (s *Service) GetBatchStatus(ctx context.Context, id uuid.UUID) (model.BatchStatusView, error) {
	batch, err := s.batches.Get(ctx, id)
	if err != nil {
		return model.BatchStatusView{}, err
	}
	return batch.StatusView(), nil
}

// CreateValuation validates the config, runs the engine over the latest
// completed batch, and persists the resulting report.
func (s *Service) CreateValuation(ctx context.Context, cfg model.ValuationConfig) (*model.ValuationReport, error) {
	if err := s.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	report, err := s.engine.Calculate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.valuations.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// GetValuation fetches a previously created report by ID.
func (s *Service) GetValuation(ctx context.Context, id uuid.UUID) (*model.ValuationReport, error) {
	return s.valuations.Get(ctx, id)
}
