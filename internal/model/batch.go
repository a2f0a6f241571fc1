package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/constants"
)

// Batch is one ingestion run over a user-submitted group of files.
// It is mutated only by the orchestrator; reads never change state.
type Batch struct {
	ID             uuid.UUID             `json:"batchId"`
	Status         constants.BatchStatus `json:"status"`
	Progress       int                   `json:"progress"` // 0..100, 100 iff complete
	TotalFiles     int                   `json:"totalFiles"`
	FilesProcessed int                   `json:"filesProcessed"`
	Results        []StreamRecord        `json:"results,omitempty"` // nil until complete
	Error          string                `json:"error,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	CompletedAt    *time.Time            `json:"completedAt,omitempty"`
}

// BatchStatusView is the read model surfaced to polling clients.
type BatchStatusView struct {
	BatchID        uuid.UUID             `json:"batchId"`
	Status         constants.BatchStatus `json:"status"`
	Progress       int                   `json:"progress"`
	FilesProcessed int                   `json:"filesProcessed"`
	TotalFiles     int                   `json:"totalFiles"`
	Error          string                `json:"error,omitempty"`
}

// StatusView projects the batch into its polling shape.
func (b *Batch) StatusView() BatchStatusView {
	return BatchStatusView{
		BatchID:        b.ID,
		Status:         b.Status,
		Progress:       b.Progress,
		FilesProcessed: b.FilesProcessed,
		TotalFiles:     b.TotalFiles,
		Error:          b.Error,
	}
}
