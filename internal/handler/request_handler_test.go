package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/config"
	"github.com/uniserve-app/uniserve-go-api/internal/handler"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
	"github.com/uniserve-app/uniserve-go-api/internal/router"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StudentDoctor{},
		&models.DeviceToken{},
		&models.VolunteerActivity{},
		&models.VolunteerRequest{},
		&models.ServiceProposal{},
		&models.Notification{},
		&models.ActivitySubmission{},
		&models.HoursSummary{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	deviceRepo := repository.NewDeviceTokenRepository(db)
	requestRepo := repository.NewVolunteerRequestRepository(db)
	proposalRepo := repository.NewServiceProposalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	hoursRepo := repository.NewHoursSummaryRepository(db)

	pushService := service.NewPushService(deviceRepo, nil, validate, logger, 0)
	notificationService := service.NewNotificationService(notificationRepo, pushService, nil, "", nil, logger)
	requestService := service.NewRequestService(requestRepo, proposalRepo, activityRepo, userRepo, submissionRepo, notificationRepo, notificationService, validate, logger)
	creditService := service.NewCreditService(submissionRepo, activityRepo, hoursRepo, notificationService, &testUploader{}, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		RequestHandler:      handler.NewRequestHandler(requestService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, requestService, logger, 0),
		SubmissionHandler:   handler.NewSubmissionHandler(creditService, logger),
		HoursHandler:        handler.NewHoursHandler(creditService, logger),
		DeviceHandler:       handler.NewDeviceHandler(pushService, logger),
		JWTMiddleware:       testJWT,
	})

	return app, db
}

type testUploader struct{}

func (u *testUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

// testJWT trusts the identity headers the tests send.
func testJWT(c *fiber.Ctx) error {
	if raw := c.Get("X-User-ID"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-User-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func seedUser(t *testing.T, db *gorm.DB, name, email, role string) models.User {
	t.Helper()
	user := models.User{FullName: name, Email: email, Role: role, Active: true}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedActivity(t *testing.T, db *gorm.DB, ownerID uint, points float64) models.VolunteerActivity {
	t.Helper()
	activity := models.VolunteerActivity{
		Title:            "Blood Drive",
		OwnerID:          ownerID,
		ProgressPoints:   points,
		FormTemplatePath: "templates/blood-drive.pdf",
	}
	require.NoError(t, db.Create(&activity).Error)
	return activity
}

func doJSON(t *testing.T, app *fiber.App, method, target string, user models.User, body interface{}) (*http.Response, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-User-Role", user.Role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var envelope apiEnvelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope))
	}
	return resp, envelope
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	center := seedUser(t, db, "Center", "center@test.dev", models.RoleCenter)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)
	activity := seedActivity(t, db, center.ID, 10)

	resp, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/requests", student, fiber.Map{"activity_id": activity.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)

	var created struct {
		RequestID      uint   `json:"request_id"`
		Status         string `json:"status"`
		NotificationID uint   `json:"notification_id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	require.Equal(t, models.RequestStatusPending, created.Status)
	require.NotZero(t, created.NotificationID)

	// Center decides.
	target := fmt.Sprintf("/api/v1/requests/%d/decision", created.RequestID)
	resp, _ = doJSON(t, app, fiber.MethodPatch, target, center, fiber.Map{"decision": "accept"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A repeated decision is a conflict.
	resp, envelope = doJSON(t, app, fiber.MethodPatch, target, center, fiber.Map{"decision": "reject"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.False(t, envelope.Success)

	// The center sees its incoming requests.
	resp, envelope = doJSON(t, app, fiber.MethodGet, "/api/v1/requests", center, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var requests []map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Data, &requests))
	require.Len(t, requests, 1)
}

func TestRequestUnknownActivity(t *testing.T) {
	app, db := setupTestApp(t)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/requests", student, fiber.Map{"activity_id": 999})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProposalFanOutOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	seedUser(t, db, "Center A", "center-a@test.dev", models.RoleCenter)
	seedUser(t, db, "Center B", "center-b@test.dev", models.RoleCenter)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)

	resp, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/proposals", student, fiber.Map{
		"title":       "Beach cleanup",
		"description": "Organize a coastal cleanup day",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		CentersNotified int `json:"centers_notified"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))
	require.Equal(t, 2, created.CentersNotified)
}

func TestProposalValidation(t *testing.T) {
	app, db := setupTestApp(t)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/proposals", student, fiber.Map{"title": "x"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
