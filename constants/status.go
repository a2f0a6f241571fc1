package constants

// BatchStatus is the canonical status for rows in batches.
type BatchStatus string

// Stable values (store these exact strings in the DB).
const (
	BatchStatusPending    BatchStatus = "pending"    // created, not yet started
	BatchStatusProcessing BatchStatus = "processing" // orchestrator running
	BatchStatusComplete   BatchStatus = "complete"   // terminal, results populated
	BatchStatusError      BatchStatus = "error"      // terminal, error populated
)

// Terminal reports whether s is one of the two terminal states.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusComplete || s == BatchStatusError
}
