// Package extract routes each submitted file to the strategy that can turn
// it into StreamRecords: tabular parse, PDF text recognition, or
// image-analysis through the extraction gateway.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/normalize"
	"github.com/royaltyiq/catalog-valuator/internal/ocr"
)

// TextRecognizer is the OCR capability (PDF -> text).
type TextRecognizer interface {
	RecognizeText(ctx context.Context, path string) (ocr.Result, error)
}

// RecordExtractor is the rate-limited extraction gateway.
type RecordExtractor interface {
	ExtractFromText(ctx context.Context, text string) ([]model.StreamRecord, error)
	ExtractFromImage(ctx context.Context, b64, mimeType string) ([]model.StreamRecord, error)
}

type Dispatcher struct {
	OCR     TextRecognizer
	Gateway RecordExtractor
	Logger  *slog.Logger
}

func NewDispatcher(recognizer TextRecognizer, gateway RecordExtractor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{OCR: recognizer, Gateway: gateway, Logger: logger}
}

// Extract dispatches on file extension and returns the normalized records for
// one file. Unsupported extensions fail with common.ErrUnsupportedFormat.
func (d *Dispatcher) Extract(ctx context.Context, path string) ([]model.StreamRecord, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)

	d.Logger.Debug("dispatch.extract", "path", path, "ext", ext, "format", string(format))

	switch format {
	case constants.TABULAR:
		return d.extractTabular(path, ext)
	case constants.PDF:
		return d.extractPDF(ctx, path)
	case constants.IMAGE:
		return d.extractImage(ctx, path, ext)
	default:
		return nil, fmt.Errorf("%w: .%s", common.ErrUnsupportedFormat, ext)
	}
}

func (d *Dispatcher) extractTabular(path, ext string) ([]model.StreamRecord, error) {
	var rows []map[string]string
	var err error
	if ext == "xlsx" {
		rows, err = parseXLSX(path)
	} else {
		rows, err = parseCSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}

	records := normalize.FromRows(rows)
	d.Logger.Info("dispatch.tabular.ok", "path", path, "rows", len(rows), "records", len(records))
	return records, nil
}

func (d *Dispatcher) extractPDF(ctx context.Context, path string) ([]model.StreamRecord, error) {
	res, err := d.OCR.RecognizeText(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: recognize text: %v", common.ErrExtraction, err)
	}
	d.Logger.Info("dispatch.pdf.recognized",
		"path", path, "pages", res.Pages, "method", res.Method, "bytes", len(res.Text),
	)
	return d.Gateway.ExtractFromText(ctx, res.Text)
}

func (d *Dispatcher) extractImage(ctx context.Context, path, ext string) ([]model.StreamRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", common.ErrExtraction, err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	mimeType := "image/png"
	if ext == "jpg" || ext == "jpeg" {
		mimeType = "image/jpeg"
	}

	d.Logger.Info("dispatch.image.analyze", "path", path, "bytes", len(raw), "mime", mimeType)
	return d.Gateway.ExtractFromImage(ctx, b64, mimeType)
}
