package handler_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

func TestNotificationInboxOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	center := seedUser(t, db, "Center", "center@test.dev", models.RoleCenter)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)
	activity := seedActivity(t, db, center.ID, 10)

	resp, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/requests", student, fiber.Map{"activity_id": activity.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, envelope := doJSON(t, app, fiber.MethodGet, "/api/v1/notifications", center, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var inbox []struct {
		ID     uint   `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &inbox))
	require.Len(t, inbox, 1)
	require.Equal(t, models.NotificationTypeVolunteerRequest, inbox[0].Type)
	require.Equal(t, models.NotificationStatusUnread, inbox[0].Status)

	resp, envelope = doJSON(t, app, fiber.MethodGet, "/api/v1/notifications/unread-count", center, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var count struct {
		Unread int64 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &count))
	require.Equal(t, int64(1), count.Unread)

	// Another user cannot read or act on it.
	resp, _ = doJSON(t, app, fiber.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", inbox[0].ID), student, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestActOnNotificationOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	center := seedUser(t, db, "Center", "center@test.dev", models.RoleCenter)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)
	activity := seedActivity(t, db, center.ID, 10)

	resp, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/requests", student, fiber.Map{"activity_id": activity.ID})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		NotificationID uint `json:"notification_id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &created))

	target := fmt.Sprintf("/api/v1/notifications/%d/act", created.NotificationID)
	resp, envelope = doJSON(t, app, fiber.MethodPost, target, center, fiber.Map{"action": "accept"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var acted struct {
		Action              string `json:"action"`
		ReplyNotificationID uint   `json:"reply_notification_id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &acted))
	require.Equal(t, "accept", acted.Action)
	require.NotZero(t, acted.ReplyNotificationID)

	// Acting twice is a conflict.
	resp, _ = doJSON(t, app, fiber.MethodPost, target, center, fiber.Map{"action": "reject"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Invalid action values are rejected before any state change.
	resp, _ = doJSON(t, app, fiber.MethodPost, target, center, fiber.Map{"action": "maybe"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRegisterDeviceOverHTTP(t *testing.T) {
	app, db := setupTestApp(t)
	student := seedUser(t, db, "Student", "student@test.dev", models.RoleStudent)

	resp, envelope := doJSON(t, app, fiber.MethodPost, "/api/v1/devices", student, fiber.Map{
		"token":    "device-token-abcdef",
		"platform": "ios",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var device struct {
		ID       uint   `json:"id"`
		UserID   uint   `json:"user_id"`
		Platform string `json:"platform"`
		Token    string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &device))
	require.Equal(t, student.ID, device.UserID)
	require.Equal(t, "ios", device.Platform)
	require.Empty(t, device.Token) // the opaque token is never echoed

	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/devices", student, fiber.Map{"token": "short"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
