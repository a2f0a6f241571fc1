package model

// StreamRecord is one normalized observation of streaming activity.
// All four fields are present and valid by construction; rows that fail
// validation are dropped by the normalizer and never reach storage.
// Revenue keeps the raw numeric precision of the source; rounding to two
// decimals happens at presentation time, not here.
type StreamRecord struct {
	Platform string  `json:"platform"`
	Streams  int64   `json:"streams"`
	Revenue  float64 `json:"revenue"`
	Date     string  `json:"date"` // YYYY-MM-DD
}
