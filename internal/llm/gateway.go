package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/normalize"
	"github.com/royaltyiq/catalog-valuator/internal/ratelimit"
)

// GatewayConfig holds the retry policy for upstream throttle signals.
type GatewayConfig struct {
	MaxRetries int           // default 2
	Backoff    time.Duration // default 2s
}

// Gateway wraps the external extraction capability behind the token-bucket
// admission policy, absorbs upstream throttling with bounded retries, and
// turns raw payloads into validated StreamRecords.
//
// The bucket is process-wide state shared by every call through this gateway,
// independent of any single batch.
type Gateway struct {
	analyzer Analyzer
	bucket   *ratelimit.Bucket
	cfg      GatewayConfig
	log      *slog.Logger
}

func NewGateway(analyzer Analyzer, bucket *ratelimit.Bucket, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if bucket == nil {
		bucket = ratelimit.NewBucket(ratelimit.DefaultCapacity, ratelimit.DefaultWindow)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Gateway{analyzer: analyzer, bucket: bucket, cfg: cfg, log: logger}
}

// ExtractFromText runs the text-analysis path (OCR output -> records).
func (g *Gateway) ExtractFromText(ctx context.Context, text string) ([]model.StreamRecord, error) {
	return g.invoke(ctx, "text", func(ctx context.Context) (string, error) {
		return g.analyzer.AnalyzeText(ctx, text)
	})
}

// ExtractFromImage runs the image-analysis path over base64-encoded bytes.
func (g *Gateway) ExtractFromImage(ctx context.Context, b64, mimeType string) ([]model.StreamRecord, error) {
	return g.invoke(ctx, "image", func(ctx context.Context) (string, error) {
		return g.analyzer.AnalyzeImage(ctx, b64, mimeType)
	})
}

func (g *Gateway) invoke(ctx context.Context, kind string, call func(context.Context) (string, error)) ([]model.StreamRecord, error) {
	rid := uuid.New().String()
	start := time.Now()

	g.log.Info("gateway.invoke.start", "req_id", rid, "kind", kind)

	payload, err := g.callWithRetry(ctx, rid, call)
	if err != nil {
		g.log.Error("gateway.invoke.call_failed",
			"req_id", rid, "kind", kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	items, err := ParseRecordArray(payload)
	if err != nil {
		g.log.Error("gateway.invoke.parse_failed",
			"req_id", rid, "kind", kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}

	records := g.validate(rid, items)
	if len(records) == 0 {
		// "no data in the document" and "extraction failed" are not
		// distinguishable from here; both surface as a failure.
		g.log.Warn("gateway.invoke.no_records",
			"req_id", rid, "kind", kind, "raw_items", len(items),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("%w: no valid records in extraction payload", common.ErrExtraction)
	}

	g.log.Info("gateway.invoke.ok",
		"req_id", rid, "kind", kind,
		"records", len(records), "raw_items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

// callWithRetry admits the call through the token bucket, then retries a
// bounded number of times when the upstream itself signals throttling.
func (g *Gateway) callWithRetry(ctx context.Context, rid string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			g.log.Warn("gateway.invoke.throttled_retry",
				"req_id", rid, "attempt", attempt, "backoff", g.cfg.Backoff,
			)
			timer := time.NewTimer(g.cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		if err := g.bucket.Wait(ctx); err != nil {
			return "", err
		}

		payload, err := call(ctx)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrThrottled) {
			return "", fmt.Errorf("%w: %v", common.ErrExtraction, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", common.ErrRateLimited, lastErr)
}

// validate holds every parsed item to the same shape tabular rows must meet,
// filters out offenders, and normalizes the survivors.
func (g *Gateway) validate(rid string, items []map[string]any) []model.StreamRecord {
	schema := BuildStreamRecordSchema()
	kept := make([]map[string]any, 0, len(items))
	for i, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		if err := ValidateJSONAgainstSchema(schema, b); err != nil {
			g.log.Warn("gateway.validate.dropped", "req_id", rid, "index", i, "error", err)
			continue
		}
		kept = append(kept, item)
	}
	return normalize.FromPayload(kept)
}
