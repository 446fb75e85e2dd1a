package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/middleware"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

// DeviceHandler serves push endpoint registration.
type DeviceHandler struct {
	service service.PushService
	logger  zerolog.Logger
}

// NewDeviceHandler constructs a handler instance.
func NewDeviceHandler(service service.PushService, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		logger:  logger.With().Str("component", "device_handler").Logger(),
	}
}

// Register binds the device routes.
func (h *DeviceHandler) Register(router fiber.Router) {
	router.Post("", h.register)
}

func (h *DeviceHandler) register(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RegisterDeviceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	device, err := h.service.RegisterDevice(ctx, userID, payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "device registered", device)
}
