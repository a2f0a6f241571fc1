// Package ocr recognizes text in PDF statements using external tools:
// pdftotext for digital PDFs, with a pdftoppm+tesseract rasterization
// fallback for scanned ones. The tools are opaque external capabilities;
// this package only drives them.
package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
}

type Result struct {
	Text     string
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr"
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, log: logger}
}

// RecognizeText extracts the text of a PDF. The embedded text layer is tried
// first; when it yields nothing usable the pages are rasterized and OCR'd,
// continuing past individual page failures.
func (e *Extractor) RecognizeText(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && strings.TrimSpace(text) != "" {
		e.log.Debug("pdf text layer extracted", "path", path, "pages", pages, "bytes", len(text))
		return Result{
			Text:     text,
			Pages:    pages,
			Method:   "pdf-text",
			Duration: time.Since(start),
			Warnings: warns,
		}, nil
	}
	if err != nil {
		warns = append(warns, err.Error())
	}

	e.log.Info("pdf has no usable text layer, rasterizing", "path", path)
	text, pages, ocrWarns, err := e.pdfToOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	if err != nil {
		return Result{Method: "pdf-ocr", Warnings: warns, Duration: time.Since(start)}, err
	}
	return Result{
		Text:     text,
		Pages:    pages,
		Method:   "pdf-ocr",
		Duration: time.Since(start),
		Warnings: warns,
	}, nil
}
