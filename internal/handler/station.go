package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cobardes/radia-fm-sub000/internal/model"
	"github.com/cobardes/radia-fm-sub000/internal/service"
	"github.com/cobardes/radia-fm-sub000/internal/store"
	"github.com/cobardes/radia-fm-sub000/pkg/response"
)

type StationHandler struct {
	service   *service.StationService
	validator *validator.Validate
}

func NewStationHandler(svc *service.StationService, v *validator.Validate) *StationHandler {
	return &StationHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/stations
func (h *StationHandler) Create(c *fiber.Ctx) error {
	var req model.StationCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.Seed == nil && req.Query == "" {
		return response.ValidationError(c, "Either seed or query is required", nil)
	}
	if req.Seed != nil && req.Query != "" {
		return response.ValidationError(c, "Seed and query are mutually exclusive", nil)
	}
	if req.Language != "" && !req.Language.IsValid() {
		return response.ValidationError(c, "Unsupported language", nil)
	}

	result, err := h.service.Create(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrSeedNotFound) {
			return response.NotFound(c, "No track found for query")
		}
		if errors.Is(err, service.ErrInvalidSeed) {
			return response.ValidationError(c, "Either seed or query is required", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Extend handles POST /api/stations/:id/extend
func (h *StationHandler) Extend(c *fiber.Ctx) error {
	stationID := c.Params("id")
	if stationID == "" {
		return response.ValidationError(c, "Station ID is required", nil)
	}

	result, err := h.service.Extend(c.Context(), stationID)
	if err != nil {
		if errors.Is(err, store.ErrStationNotFound) {
			return response.NotFound(c, "Station not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Get handles GET /api/stations/:id
func (h *StationHandler) Get(c *fiber.Ctx) error {
	stationID := c.Params("id")
	if stationID == "" {
		return response.ValidationError(c, "Station ID is required", nil)
	}

	st, err := h.service.Station(c.Context(), stationID)
	if err != nil {
		if errors.Is(err, store.ErrStationNotFound) {
			return response.NotFound(c, "Station not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, st)
}

// Queue handles GET /api/stations/:id/queue
func (h *StationHandler) Queue(c *fiber.Ctx) error {
	stationID := c.Params("id")
	if stationID == "" {
		return response.ValidationError(c, "Station ID is required", nil)
	}

	result, err := h.service.Queue(c.Context(), stationID)
	if err != nil {
		if errors.Is(err, store.ErrStationNotFound) {
			return response.NotFound(c, "Station not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
