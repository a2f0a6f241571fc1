package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/royaltyiq/catalog-valuator/internal/common"
	"github.com/royaltyiq/catalog-valuator/internal/model"
	"github.com/royaltyiq/catalog-valuator/internal/service"
	"github.com/royaltyiq/catalog-valuator/pkg/response"
)

type ValuationHandler struct {
	service *service.Service
}

func NewValuationHandler(svc *service.Service) *ValuationHandler {
	return &ValuationHandler{service: svc}
}

// Create handles POST /api/valuations with a ValuationConfig body.
func (h *ValuationHandler) Create(c *fiber.Ctx) error {
	var cfg model.ValuationConfig
	if err := c.BodyParser(&cfg); err != nil {
		return response.ValidationError(c, "invalid valuation config body", nil)
	}

	report, err := h.service.CreateValuation(c.Context(), cfg)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, common.ErrNoData):
			return response.NoData(c, "no completed batch with records to value")
		default:
			return response.ServiceError(c, "valuation failed")
		}
	}
	return response.Created(c, report)
}

// Get handles GET /api/valuations/:id.
func (h *ValuationHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.ValidationError(c, "invalid valuation id", nil)
	}

	report, err := h.service.GetValuation(c.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return response.NotFound(c, "valuation not found")
		}
		return response.ServiceError(c, "failed to load valuation")
	}
	return response.OK(c, report)
}
