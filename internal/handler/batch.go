package handler

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/constants"
	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/service"
	"github.com/royaltyiq/catalog-valuator/pkg/response"
)

const maxUploadSize = 25 * 1024 * 1024 // 25MB per statement file

type BatchHandler struct {
	service   *service.Service
	uploadDir string
}

func NewBatchHandler(svc *service.Service, uploadDir string) *BatchHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &BatchHandler{service: svc, uploadDir: uploadDir}
}

// Submit handles POST /api/batches: a multipart form with one or more
// statement files under the "files" field.
func (h *BatchHandler) Submit(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "multipart form is required", nil)
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return response.ValidationError(c, "at least one file is required", nil)
	}

	var saved []string
	for _, upload := range uploads {
		if upload.Size > maxUploadSize {
			cleanupFiles(saved)
			return response.ValidationError(c, "file exceeds 25MB limit", map[string]interface{}{
				"file": upload.Filename, "size": upload.Size,
			})
		}
		ext := constants.NormalizeExt(filepath.Ext(upload.Filename))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			cleanupFiles(saved)
			return response.ValidationError(c, "unsupported file extension", map[string]interface{}{
				"file": upload.Filename, "ext": ext,
			})
		}

		// Scoped filename: the original name is untrusted input.
		dst := filepath.Join(h.uploadDir, uuid.New().String()+"."+ext)
		if err := c.SaveFile(upload, dst); err != nil {
			cleanupFiles(saved)
			return response.ServiceError(c, "failed to store upload")
		}
		saved = append(saved, dst)
	}

	batchID, err := h.service.SubmitBatch(c.Context(), saved)
	if err != nil {
		cleanupFiles(saved)
		if errors.Is(err, common.ErrValidation) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, "failed to create batch")
	}

	return response.Accepted(c, fiber.Map{"batchId": batchID})
}

// Status handles GET /api/batches/:id.
func (h *BatchHandler) Status(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.ValidationError(c, "invalid batch id", nil)
	}

	view, err := h.service.GetBatchStatus(c.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return response.NotFound(c, "batch not found")
		}
		return response.ServiceError(c, "failed to load batch")
	}
	return response.OK(c, view)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
