package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/middleware"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

// RequestHandler serves volunteer request and service proposal endpoints.
type RequestHandler struct {
	service service.RequestService
	logger  zerolog.Logger
}

// NewRequestHandler constructs a handler instance.
func NewRequestHandler(service service.RequestService, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		logger:  logger.With().Str("component", "request_handler").Logger(),
	}
}

// Register binds the volunteer request routes.
func (h *RequestHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Patch("/:id/decision", h.decide)
}

// RegisterProposals binds the service proposal routes.
func (h *RequestHandler) RegisterProposals(router fiber.Router) {
	router.Post("", h.createProposal)
	router.Get("", h.listProposals)
}

func (h *RequestHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.CreateVolunteerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.CreateRequest(h.requestContext(c), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "volunteer request recorded", result)
}

func (h *RequestHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	ctx := h.requestContext(c)
	if userRoleFromContext(c) == models.RoleStudent {
		requests, err := h.service.ListRequestsByStudent(ctx, userID)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "requests retrieved", requests)
	}

	requests, err := h.service.ListRequestsForOwner(ctx, userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "requests retrieved", requests)
}

func (h *RequestHandler) decide(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DecideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	request, err := h.service.DecideRequest(h.requestContext(c), id, userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "volunteer request decided", request)
}

func (h *RequestHandler) createProposal(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.CreateProposalRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.CreateProposal(h.requestContext(c), userID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "service proposal created", result)
}

func (h *RequestHandler) listProposals(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	ctx := h.requestContext(c)
	if userRoleFromContext(c) == models.RoleStudent {
		proposals, err := h.service.ListProposalsByStudent(ctx, userID)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "proposals retrieved", proposals)
	}

	proposals, err := h.service.ListProposals(ctx)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "proposals retrieved", proposals)
}

func (h *RequestHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *RequestHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity not found")
	case errors.Is(err, service.ErrRequestNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "volunteer request not found")
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrRequestAlreadyDecided):
		return utils.SendError(c, fiber.StatusConflict, "volunteer request already decided")
	case errors.Is(err, service.ErrNotActivityOwner):
		return utils.SendError(c, fiber.StatusForbidden, "caller does not own the activity")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
