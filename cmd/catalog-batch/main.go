package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/extract"
	"github.com/royaltyiq/catalog-valuator/internal/llm"
	"github.com/royaltyiq/catalog-valuator/internal/llm/openai"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/ocr"
	"github.com/royaltyiq/catalog-valuator/internal/pipeline"
	"github.com/royaltyiq/catalog-valuator/internal/ratelimit"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
	"github.com/royaltyiq/catalog-valuator/internal/valuation"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir            = flag.String("dir", "", "directory of statement files to process (required)")
		yearOneDecay   = flag.Int("year-one-decay", 30, "decay percent applied in years 1-2")
		yearTwoDecay   = flag.Int("year-two-decay", 20, "decay percent applied in years 3-4")
		yearThreeDecay = flag.Int("year-three-decay", 10, "decay percent applied from year 5")
		spotifyRate    = flag.Float64("spotify-rate", 0.004, "per-stream rate for Spotify")
		appleRate      = flag.Float64("apple-rate", 0.01, "per-stream rate for Apple Music")
		workers        = flag.Int("workers", pipeline.DefaultWorkers, "concurrent files")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	// One-shot run: everything lives in an in-memory database.
	store, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	batchRepo := repository.NewBatchRepository(store)

	bucket := ratelimit.NewBucket(cfg.LLM.BucketCapacity, ratelimit.DefaultWindow)
	analyzer := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	gateway := llm.NewGateway(analyzer, bucket, llm.GatewayConfig{
		MaxRetries: cfg.LLM.ThrottleRetries,
		Backoff:    cfg.LLM.ThrottleBackoff,
	}, logger)
	recognizer := ocr.NewExtractor(ocr.Config{
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)
	dispatcher := extract.NewDispatcher(recognizer, gateway, logger)

	// Source files stay where they are.
	orchestrator := pipeline.NewOrchestrator(batchRepo, dispatcher, pipeline.NoopStore{}, *workers, logger)

	files, err := collectFiles(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		printError("Error: no supported statement files in %s\n", *dir)
		os.Exit(1)
	}
	logger.Info("starting batch", "dir", *dir, "files", len(files))

	batch, err := orchestrator.Submit(ctx, files)
	if err != nil {
		logger.Error("failed to create batch", "error", err)
		os.Exit(1)
	}
	if err := orchestrator.Run(ctx, batch.ID, files); err != nil {
		logger.Error("batch failed", "batch_id", batch.ID, "error", err)
		os.Exit(1)
	}

	engine := valuation.NewEngine(batchRepo, logger)
	report, err := engine.Calculate(ctx, model.ValuationConfig{
		SpotifyRate:    *spotifyRate,
		AppleMusicRate: *appleRate,
		YearOneDecay:   *yearOneDecay,
		YearTwoDecay:   *yearTwoDecay,
		YearThreeDecay: *yearThreeDecay,
	})
	if err != nil {
		logger.Error("valuation failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("failed to encode report", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// collectFiles returns the supported statement files directly under dir.
func collectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedExtensions[ext]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
