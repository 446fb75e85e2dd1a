package dto

import (
	"time"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// RegisterDeviceRequest is the payload for registering a push endpoint.
type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,min=8,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

// DeviceTokenResponse is the API shape of a registered endpoint.
type DeviceTokenResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDeviceTokenResponse maps a device token model. The opaque token value
// itself is never echoed back.
func NewDeviceTokenResponse(token models.DeviceToken) DeviceTokenResponse {
	return DeviceTokenResponse{
		ID:        token.ID,
		UserID:    token.UserID,
		Platform:  token.Platform,
		CreatedAt: token.CreatedAt,
		UpdatedAt: token.UpdatedAt,
	}
}
