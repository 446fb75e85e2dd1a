package models

import "time"

// DeviceToken stores one push delivery endpoint for a user. A user may hold
// several rows (multi-device); the (user_id, token) pair is unique so
// re-registering a token only refreshes platform and updated_at.
type DeviceToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_device_user_token" json:"user_id"`
	Token     string    `gorm:"size:512;not null;uniqueIndex:idx_device_user_token" json:"token"`
	Platform  string    `gorm:"size:32;default:android" json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
