package llm

import (
	"context"
	"errors"
)

// ErrThrottled is the upstream's own rate-limit signal, distinct from local
// token-bucket admission. Implementations of Analyzer must return it (wrapped
// or bare) when the capability reports throttling.
var ErrThrottled = errors.New("extraction service throttled")

// Analyzer is the opaque external extraction capability. Both methods return
// the raw payload text produced by the service; parsing and validation happen
// in the gateway.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string) (string, error)
	AnalyzeImage(ctx context.Context, b64, mimeType string) (string, error)
}
