package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
)

// memBatchRepo is an in-memory BatchRepository that records every progress
// value it was asked to persist.
type memBatchRepo struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]*model.Batch
	progress []int
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: map[uuid.UUID]*model.Batch{}}
}

func (r *memBatchRepo) Create(_ context.Context, totalFiles int) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &model.Batch{
		ID:         uuid.New(),
		Status:     constants.BatchStatusPending,
		TotalFiles: totalFiles,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	r.batches[b.ID] = b
	return b, nil
}

func (r *memBatchRepo) Get(_ context.Context, id uuid.UUID) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) Update(_ context.Context, id uuid.UUID, upd repository.BatchUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return common.ErrNotFound
	}
	if upd.Status != nil {
		b.Status = *upd.Status
	}
	if upd.Progress != nil {
		b.Progress = *upd.Progress
		r.progress = append(r.progress, *upd.Progress)
	}
	if upd.FilesProcessed != nil {
		b.FilesProcessed = *upd.FilesProcessed
	}
	if upd.Results != nil {
		b.Results = upd.Results
	}
	if upd.Error != nil {
		b.Error = *upd.Error
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		b.CompletedAt = &t
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memBatchRepo) LatestComplete(_ context.Context) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Batch
	for _, b := range r.batches {
		if b.Status != constants.BatchStatusComplete {
			continue
		}
		if latest == nil || (b.CompletedAt != nil && latest.CompletedAt != nil && b.CompletedAt.After(*latest.CompletedAt)) {
			latest = b
		}
	}
	if latest == nil {
		return nil, common.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// pathExtractor maps file paths to canned outcomes.
type pathExtractor struct {
	records map[string][]model.StreamRecord
	errs    map[string]error
	panics  map[string]bool
}

func (e *pathExtractor) Extract(_ context.Context, path string) ([]model.StreamRecord, error) {
	if e.panics[path] {
		panic("extractor exploded on " + path)
	}
	if err, ok := e.errs[path]; ok {
		return nil, err
	}
	return e.records[path], nil
}

func record(platform string, streams int64, revenue float64) model.StreamRecord {
	return model.StreamRecord{Platform: platform, Streams: streams, Revenue: revenue, Date: "2024-01-01"}
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	o := NewOrchestrator(newMemBatchRepo(), &pathExtractor{}, nil, 0, nil)
	_, err := o.Submit(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRunHappyPath(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{records: map[string][]model.StreamRecord{
		"a.csv": {record("Spotify", 1000, 40)},
		"b.csv": {record("Apple Music", 500, 5.25), record("Tidal", 10, 1)},
	}}
	o := NewOrchestrator(repo, ext, nil, 2, nil)

	files := []string{"a.csv", "b.csv"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusComplete, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 2, got.FilesProcessed)
	require.Len(t, got.Results, 3)
	// submission order: a.csv's record first, then b.csv's two
	assert.Equal(t, "Spotify", got.Results[0].Platform)
	assert.Equal(t, "Apple Music", got.Results[1].Platform)
	require.NotNil(t, got.CompletedAt)
}

func TestRunContainsPerFileFailure(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{
		records: map[string][]model.StreamRecord{
			"good.csv": {record("Spotify", 1000, 40)},
		},
		errs: map[string]error{
			"bad.txt": fmt.Errorf("%w: .txt", common.ErrUnsupportedFormat),
		},
	}
	o := NewOrchestrator(repo, ext, nil, 2, nil)

	files := []string{"good.csv", "bad.txt"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusComplete, got.Status)
	assert.Equal(t, 2, got.FilesProcessed)
	assert.Len(t, got.Results, 1)
}

func TestRunAllFilesFailEndsInError(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{errs: map[string]error{
		"a.pdf": errors.New("ocr broke"),
		"b.pdf": errors.New("ocr broke"),
	}}
	o := NewOrchestrator(repo, ext, nil, 2, nil)

	files := []string{"a.pdf", "b.pdf"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)

	err = o.Run(context.Background(), b.ID, files)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPipeline)

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusError, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.Empty(t, got.Results)
}

func TestRunProgressMonotoneAndCappedBeforeFinalize(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{records: map[string][]model.StreamRecord{}}
	files := make([]string, 7)
	for i := range files {
		files[i] = fmt.Sprintf("f%d.csv", i)
		ext.records[files[i]] = []model.StreamRecord{record("Spotify", 1, 1)}
	}
	o := NewOrchestrator(repo, ext, nil, 3, nil)

	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	require.NotEmpty(t, repo.progress)
	prev := 0
	for _, p := range repo.progress {
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	// every per-file update stays below 100; only finalize writes 100
	for _, p := range repo.progress[:len(repo.progress)-1] {
		assert.Less(t, p, 100)
	}
	assert.Equal(t, 100, repo.progress[len(repo.progress)-1])
}

func TestRunRecoversFromPanic(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{panics: map[string]bool{"boom.csv": true}}
	o := NewOrchestrator(repo, ext, nil, 1, nil)

	files := []string{"boom.csv"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)

	err = o.Run(context.Background(), b.ID, files)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPipeline)
	assert.Contains(t, err.Error(), "panic")

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusError, got.Status)
}

type releaseRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *releaseRecorder) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func TestRunReleasesEveryFile(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{
		records: map[string][]model.StreamRecord{"ok.csv": {record("Spotify", 1, 1)}},
		errs:    map[string]error{"bad.csv": errors.New("unreadable")},
	}
	store := &releaseRecorder{}
	o := NewOrchestrator(repo, ext, store, 2, nil)

	files := []string{"ok.csv", "bad.csv"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	assert.ElementsMatch(t, []string{"ok.csv", "bad.csv"}, store.paths)
}

func TestStatusViewReportsDerivedFields(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{records: map[string][]model.StreamRecord{
		"a.csv": {record("Spotify", 1000, 40)},
	}}
	o := NewOrchestrator(repo, ext, nil, 1, nil)

	files := []string{"a.csv"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	view := got.StatusView()
	assert.Equal(t, constants.BatchStatusComplete, view.Status)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, 1, view.TotalFiles)
	assert.Equal(t, 1, view.FilesProcessed)
}

// Mirrors a mixed two-file submission end to end: one parsable statement and
// one unsupported file. The batch completes with exactly the parsable records.
func TestRunMixedBatchEndToEnd(t *testing.T) {
	repo := newMemBatchRepo()
	ext := &pathExtractor{
		records: map[string][]model.StreamRecord{
			"statement.csv": {record("Spotify", 1000, 40.00)},
		},
		errs: map[string]error{
			"readme.txt": fmt.Errorf("%w: .txt", common.ErrUnsupportedFormat),
		},
	}
	o := NewOrchestrator(repo, ext, nil, 2, nil)

	files := []string{"statement.csv", "readme.txt"}
	b, err := o.Submit(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, b.TotalFiles)
	require.NoError(t, o.Run(context.Background(), b.ID, files))

	got, err := repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusComplete, got.Status)
	assert.Equal(t, 2, got.FilesProcessed)
	require.Len(t, got.Results, 1)
	assert.Equal(t, int64(1000), got.Results[0].Streams)
	assert.Equal(t, 40.00, got.Results[0].Revenue)
}
