package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/middleware"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

// HoursHandler serves hour processing and verdict publication endpoints.
type HoursHandler struct {
	service service.CreditService
	logger  zerolog.Logger
}

// NewHoursHandler constructs a handler instance.
func NewHoursHandler(service service.CreditService, logger zerolog.Logger) *HoursHandler {
	return &HoursHandler{
		service: service,
		logger:  logger.With().Str("component", "hours_handler").Logger(),
	}
}

// Register binds the hours routes behind their capability guards.
func (h *HoursHandler) Register(router fiber.Router) {
	router.Post("/process", middleware.RequirePermission(middleware.CanProcessHours), h.process)
	router.Get("/summary", middleware.RequirePermission(middleware.CanViewStudents), h.summary)
	router.Post("/:studentId/publish", middleware.RequirePermission(middleware.CanViewStudents), h.publish)
}

func (h *HoursHandler) process(c *fiber.Ctx) error {
	summaries, err := h.service.ProcessHours(h.requestContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "hours processed", summaries)
}

func (h *HoursHandler) summary(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	summaries, err := h.service.ListSummariesForDoctor(h.requestContext(c), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "summaries retrieved", summaries)
}

func (h *HoursHandler) publish(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.PublishResult(h.requestContext(c), studentID, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result published", result)
}

func (h *HoursHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *HoursHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSummaryNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "hours summary not found")
	case errors.Is(err, service.ErrResultAlreadySent):
		return utils.SendError(c, fiber.StatusConflict, "hours result already sent")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
