package handler

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/middleware"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
	"github.com/uniserve-app/uniserve-go-api/internal/utils"
)

const maxUploadBytes = 10 << 20

// SubmissionHandler serves evidence upload and review endpoints.
type SubmissionHandler struct {
	service service.CreditService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a handler instance.
func NewSubmissionHandler(service service.CreditService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register binds the submission routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
	router.Get("", h.list)
	router.Patch("/:id/approve", h.approve)
	router.Patch("/:id/reject", h.reject)
}

func (h *SubmissionHandler) upload(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	activityValue := c.FormValue("activity_id")
	if activityValue == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing activity_id")
	}
	activityID, err := strconv.ParseUint(activityValue, 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity_id")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	payload := dto.UploadSubmissionRequest{ActivityID: uint(activityID)}
	submission, err := h.service.Upload(h.requestContext(c), userID, payload, fileHeader.Filename, data)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission uploaded", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	ctx := h.requestContext(c)
	if userRoleFromContext(c) == models.RoleStudent {
		submissions, err := h.service.ListStudentSubmissions(ctx, userID)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "submissions retrieved", submissions)
	}

	submissions, err := h.service.ListReviewQueue(ctx, userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) approve(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.Approve(h.requestContext(c), id, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission approved", result)
}

func (h *SubmissionHandler) reject(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Reject(h.requestContext(c), id, userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission rejected", submission)
}

func (h *SubmissionHandler) requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSubmissionNotReviewable):
		return utils.SendError(c, fiber.StatusConflict, "submission is not awaiting review")
	case errors.Is(err, service.ErrCreditExhausted):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "credit ceiling reached")
	case errors.Is(err, service.ErrUnsupportedFileType):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "unsupported file type")
	case errors.Is(err, service.ErrNotActivityOwner):
		return utils.SendError(c, fiber.StatusForbidden, "caller does not own the activity")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
