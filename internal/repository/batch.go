package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
)

// BatchUpdate carries the partial fields of one atomic batch write.
// Nil pointers leave the column untouched.
type BatchUpdate struct {
	Status         *constants.BatchStatus
	Progress       *int
	FilesProcessed *int
	Results        []model.StreamRecord
	Error          *string
	CompletedAt    *time.Time
}

// BatchRepository is the persistence surface the orchestrator writes through.
// Every method is a single statement: atomic per call.
type BatchRepository interface {
	Create(ctx context.Context, totalFiles int) (*model.Batch, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	Update(ctx context.Context, id uuid.UUID, upd BatchUpdate) error
	LatestComplete(ctx context.Context) (*model.Batch, error)
}

type batchRepo struct {
	store *Store
}

func NewBatchRepository(store *Store) BatchRepository {
	return &batchRepo{store: store}
}

const batchColumns = `id, status, progress, total_files, files_processed, results, error_message, created_at, updated_at, completed_at`

func (r *batchRepo) Create(ctx context.Context, totalFiles int) (*model.Batch, error) {
	now := time.Now().UTC()
	b := &model.Batch{
		ID:         uuid.New(),
		Status:     constants.BatchStatusPending,
		TotalFiles: totalFiles,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := r.store.db.ExecContext(ctx, r.store.rebind(
		`INSERT INTO batches (id, status, progress, total_files, files_processed, created_at, updated_at)
		 VALUES (?, ?, 0, ?, 0, ?, ?)`),
		b.ID.String(), string(b.Status), totalFiles, fmtTime(now), fmtTime(now),
	)
	if err != nil {
		r.store.log.Error("batch create failed", "error", err)
		return nil, fmt.Errorf("create batch: %w", err)
	}
	r.store.log.Info("batch created", "batch_id", b.ID, "total_files", totalFiles)
	return b, nil
}

func (r *batchRepo) Get(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(
		`SELECT `+batchColumns+` FROM batches WHERE id = ?`), id.String())
	return scanBatch(row)
}

func (r *batchRepo) LatestComplete(ctx context.Context) (*model.Batch, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.rebind(
		`SELECT `+batchColumns+` FROM batches
		 WHERE status = ? ORDER BY completed_at DESC LIMIT 1`),
		string(constants.BatchStatusComplete))
	return scanBatch(row)
}

func (r *batchRepo) Update(ctx context.Context, id uuid.UUID, upd BatchUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(time.Now().UTC())}

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *upd.Progress)
	}
	if upd.FilesProcessed != nil {
		sets = append(sets, "files_processed = ?")
		args = append(args, *upd.FilesProcessed)
	}
	if upd.Results != nil {
		raw, err := json.Marshal(upd.Results)
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		sets = append(sets, "results = ?")
		args = append(args, string(raw))
	}
	if upd.Error != nil {
		sets = append(sets, "error_message = ?")
		args = append(args, *upd.Error)
	}
	if upd.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, fmtTime(*upd.CompletedAt))
	}

	args = append(args, id.String())
	res, err := r.store.db.ExecContext(ctx, r.store.rebind(
		`UPDATE batches SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		r.store.log.Error("batch update failed", "batch_id", id, "error", err)
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update batch %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*model.Batch, error) {
	var (
		b         model.Batch
		idStr     string
		status    string
		results   sql.NullString
		errMsg    sql.NullString
		createdAt string
		updatedAt string
		completed sql.NullString
	)
	err := row.Scan(&idStr, &status, &b.Progress, &b.TotalFiles, &b.FilesProcessed,
		&results, &errMsg, &createdAt, &updatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}

	b.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse batch id: %w", err)
	}
	b.Status = constants.BatchStatus(status)
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &b.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	if errMsg.Valid {
		b.Error = errMsg.String
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	if completed.Valid && completed.String != "" {
		t := parseTime(completed.String)
		b.CompletedAt = &t
	}
	return &b, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
