// Package pipeline drives a bounded-concurrency fan-out over a batch of
// statement files and owns the batch state machine:
//
//	pending -> processing -> {complete | error}
//
// The batch record is the only mutable shared state during processing and is
// mutated exclusively here; reads elsewhere never change it. A batch left
// processing by a crash has no automatic recovery (accepted limitation, see
// DESIGN.md).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
)

// DefaultWorkers bounds concurrent file processing: extraction calls share
// one rate ceiling and OCR workers are memory-hungry, so full parallelism
// buys nothing.
const DefaultWorkers = 3

// FileExtractor turns one file into records (the format dispatcher).
type FileExtractor interface {
	Extract(ctx context.Context, path string) ([]model.StreamRecord, error)
}

// FileStore releases per-file artifacts once processing is done.
type FileStore interface {
	Release(path string)
}

type Orchestrator struct {
	batches   repository.BatchRepository
	extractor FileExtractor
	files     FileStore
	workers   int
	log       *slog.Logger
}

func NewOrchestrator(batches repository.BatchRepository, extractor FileExtractor, files FileStore, workers int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if files == nil {
		files = NoopStore{}
	}
	return &Orchestrator{
		batches:   batches,
		extractor: extractor,
		files:     files,
		workers:   workers,
		log:       logger,
	}
}

// Submit creates the batch record in pending state.
func (o *Orchestrator) Submit(ctx context.Context, files []string) (*model.Batch, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: batch has no files", common.ErrValidation)
	}
	return o.batches.Create(ctx, len(files))
}

// Run processes the files of a previously submitted batch and finalizes its
// status. Per-file extraction failures are contained: the file contributes
// zero records and the batch continues. Only an orchestration-level failure
// (or an entirely empty result set) terminates the batch as error.
func (o *Orchestrator) Run(ctx context.Context, batchID uuid.UUID, files []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", common.ErrPipeline, r)
		}
		if err != nil {
			o.fail(batchID, err)
		}
	}()

	processing := constants.BatchStatusProcessing
	if err := o.batches.Update(ctx, batchID, repository.BatchUpdate{Status: &processing}); err != nil {
		return fmt.Errorf("%w: start batch: %v", common.ErrPipeline, err)
	}
	o.log.Info("batch.start", "batch_id", batchID, "files", len(files), "workers", o.workers)

	var (
		mu        sync.Mutex
		processed int
		perFile   = make([][]model.StreamRecord, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, path := range files {
		g.Go(func() error {
			records := o.processFile(gctx, batchID, path)

			// Serialize the read-modify-write on filesProcessed/progress:
			// concurrent workers must not race this update.
			mu.Lock()
			defer mu.Unlock()
			perFile[i] = records
			processed++
			progress := int(math.Round(float64(processed) / float64(len(files)) * 100))
			if progress > 99 {
				progress = 99 // 100 is reserved for the finalize step
			}
			return o.batches.Update(gctx, batchID, repository.BatchUpdate{
				FilesProcessed: &processed,
				Progress:       &progress,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrPipeline, err)
	}

	// Flatten in submission order so results are deterministic.
	var results []model.StreamRecord
	for _, records := range perFile {
		results = append(results, records...)
	}

	if len(results) == 0 {
		return fmt.Errorf("%w: no records could be extracted from any file", common.ErrPipeline)
	}

	return o.finalize(ctx, batchID, results)
}

// processFile extracts one file, containing any failure, and releases the
// file's artifacts on every path.
func (o *Orchestrator) processFile(ctx context.Context, batchID uuid.UUID, path string) []model.StreamRecord {
	defer o.files.Release(path)

	records, err := o.extractor.Extract(ctx, path)
	if err != nil {
		o.log.Warn("batch.file.failed", "batch_id", batchID, "path", path, "error", err)
		return nil
	}
	o.log.Info("batch.file.ok", "batch_id", batchID, "path", path, "records", len(records))
	return records
}

func (o *Orchestrator) finalize(ctx context.Context, batchID uuid.UUID, results []model.StreamRecord) error {
	var (
		complete = constants.BatchStatusComplete
		progress = 100
		now      = time.Now().UTC()
	)
	if err := o.batches.Update(ctx, batchID, repository.BatchUpdate{
		Status:      &complete,
		Progress:    &progress,
		Results:     results,
		CompletedAt: &now,
	}); err != nil {
		return fmt.Errorf("%w: finalize batch: %v", common.ErrPipeline, err)
	}
	o.log.Info("batch.complete", "batch_id", batchID, "records", len(results))
	return nil
}

// fail marks the batch terminal with the captured message. Uses a fresh
// context: the batch must land in error even when the run context is gone.
func (o *Orchestrator) fail(batchID uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		errStatus = constants.BatchStatusError
		msg       = cause.Error()
		now       = time.Now().UTC()
	)
	if err := o.batches.Update(ctx, batchID, repository.BatchUpdate{
		Status:      &errStatus,
		Error:       &msg,
		CompletedAt: &now,
	}); err != nil {
		o.log.Error("batch.fail.update_failed", "batch_id", batchID, "error", err)
	}
	o.log.Warn("batch.error", "batch_id", batchID, "cause", msg)
}
