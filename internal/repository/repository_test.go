package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBatchCreateAndGet(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusPending, created.Status)
	assert.Equal(t, 3, created.TotalFiles)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, constants.BatchStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, 0, got.FilesProcessed)
	assert.Nil(t, got.Results)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestBatchGetUnknownID(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBatchPartialUpdates(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	ctx := context.Background()

	b, err := repo.Create(ctx, 2)
	require.NoError(t, err)

	processing := constants.BatchStatusProcessing
	require.NoError(t, repo.Update(ctx, b.ID, BatchUpdate{Status: &processing}))

	progress, processed := 50, 1
	require.NoError(t, repo.Update(ctx, b.ID, BatchUpdate{
		Progress:       &progress,
		FilesProcessed: &processed,
	}))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	// the status update survives the later progress-only write
	assert.Equal(t, constants.BatchStatusProcessing, got.Status)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, 1, got.FilesProcessed)
	assert.Equal(t, 2, got.TotalFiles)
}

func TestBatchFinalizeRoundTrip(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	ctx := context.Background()

	b, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	var (
		complete  = constants.BatchStatusComplete
		progress  = 100
		processed = 1
		now       = time.Now().UTC()
		results   = []model.StreamRecord{
			{Platform: "Spotify", Streams: 1000, Revenue: 40.5, Date: "2024-01-01"},
			{Platform: "Apple Music", Streams: 250, Revenue: 12.345, Date: "2024-02-01"},
		}
	)
	require.NoError(t, repo.Update(ctx, b.ID, BatchUpdate{
		Status:         &complete,
		Progress:       &progress,
		FilesProcessed: &processed,
		Results:        results,
		CompletedAt:    &now,
	}))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusComplete, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, results, got.Results)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, now, *got.CompletedAt, time.Second)
}

func TestBatchUpdateUnknownID(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	progress := 10
	err := repo.Update(context.Background(), uuid.New(), BatchUpdate{Progress: &progress})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBatchErrorStateRoundTrip(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	ctx := context.Background()

	b, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	var (
		errStatus = constants.BatchStatusError
		msg       = "no records could be extracted from any file"
		now       = time.Now().UTC()
	)
	require.NoError(t, repo.Update(ctx, b.ID, BatchUpdate{
		Status:      &errStatus,
		Error:       &msg,
		CompletedAt: &now,
	}))

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusError, got.Status)
	assert.Equal(t, msg, got.Error)
	assert.Empty(t, got.Results)
}

func TestLatestCompletePicksNewest(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	ctx := context.Background()

	complete := constants.BatchStatusComplete
	base := time.Now().UTC().Add(-time.Hour)

	var newest uuid.UUID
	for i := 0; i < 3; i++ {
		b, err := repo.Create(ctx, 1)
		require.NoError(t, err)
		done := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Update(ctx, b.ID, BatchUpdate{
			Status:      &complete,
			Results:     []model.StreamRecord{{Platform: "Spotify", Streams: int64(i + 1), Revenue: 1, Date: "2024-01-01"}},
			CompletedAt: &done,
		}))
		newest = b.ID
	}

	// a pending batch created afterwards must not win
	_, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	got, err := repo.LatestComplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, got.ID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, int64(3), got.Results[0].Streams)
}

func TestLatestCompleteEmptyDatabase(t *testing.T) {
	repo := NewBatchRepository(openTestStore(t))
	_, err := repo.LatestComplete(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestValuationRoundTrip(t *testing.T) {
	repo := NewValuationRepository(openTestStore(t))
	ctx := context.Background()

	report := &model.ValuationReport{
		ID: uuid.New(),
		Config: model.ValuationConfig{
			SpotifyRate:    0.004,
			AppleMusicRate: 0.01,
			YearOneDecay:   30,
			YearTwoDecay:   20,
			YearThreeDecay: 10,
		},
		Summary: model.ValuationSummary{
			TotalTracks:          2,
			CurrentAnnualRevenue: 28000,
			TotalStreams:         1_000_000,
			ProjectedValue:       79440,
		},
		Projections: []model.YearProjection{
			{Year: 2026, Revenue: 28000},
			{Year: 2027, Revenue: 19600},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, report))

	got, err := repo.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, report.Config, got.Config)
	assert.Equal(t, report.Summary, got.Summary)
	assert.Equal(t, report.Projections, got.Projections)
	assert.WithinDuration(t, report.CreatedAt, got.CreatedAt, time.Second)
}

func TestValuationGetUnknownID(t *testing.T) {
	repo := NewValuationRepository(openTestStore(t))
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}

func TestRebindOnlyTouchesPostgres(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?",
		sqlite.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2",
		pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
}
