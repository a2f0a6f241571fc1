package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/extract"
	"github.com/royaltyiq/catalog-valuator/internal/handler"
	"github.com/royaltyiq/catalog-valuator/internal/llm"
	"github.com/royaltyiq/catalog-valuator/internal/llm/openai"
	"github.com/royaltyiq/catalog-valuator/internal/ocr"
	"github.com/royaltyiq/catalog-valuator/internal/pipeline"
	"github.com/royaltyiq/catalog-valuator/internal/ratelimit"
	"github.com/royaltyiq/catalog-valuator/internal/repository"
	"github.com/royaltyiq/catalog-valuator/internal/service"
	"github.com/royaltyiq/catalog-valuator/internal/valuation"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	batchRepo := repository.NewBatchRepository(store)
	valuationRepo := repository.NewValuationRepository(store)

	// One bucket for the whole process: every extraction call, regardless of
	// batch, shares the upstream rate ceiling.
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
	orchestrator := pipeline.NewOrchestrator(
		batchRepo, dispatcher, pipeline.LocalStore{Log: logger}, cfg.Pipeline.Workers, logger)
	engine := valuation.NewEngine(batchRepo, logger)
	svc := service.New(batchRepo, valuationRepo, orchestrator, engine, logger)

	app := fiber.New(fiber.Config{
		AppName:   "catalog-valuator",
		BodyLimit: 100 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	batches := handler.NewBatchHandler(svc, cfg.Server.UploadDir)
	valuations := handler.NewValuationHandler(svc)

	api := app.Group("/api")
	api.Post("/batches", batches.Submit)
	api.Get("/batches/:id", batches.Status)
	api.Post("/valuations", valuations.Create)
	api.Get("/valuations/:id", valuations.Get)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := app.Listen(cfg.Server.Addr); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
