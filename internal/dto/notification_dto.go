package dto

import (
	"time"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// NotificationResponse is the API shape of a notification record.
type NotificationResponse struct {
	ID         uint                       `json:"id"`
	Type       string                     `json:"type"`
	SenderID   uint                       `json:"sender_id"`
	ReceiverID uint                       `json:"receiver_id"`
	ActivityID *uint                      `json:"activity_id,omitempty"`
	ProposalID *uint                      `json:"proposal_id,omitempty"`
	Title      string                     `json:"title"`
	Body       string                     `json:"body"`
	Payload    models.NotificationPayload `json:"payload"`
	Status     string                     `json:"status"`
	Action     *string                    `json:"action,omitempty"`
	ReadAt     *time.Time                 `json:"read_at,omitempty"`
	ActedAt    *time.Time                 `json:"acted_at,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

// NewNotificationResponse maps a notification model to its response shape.
func NewNotificationResponse(notification models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         notification.ID,
		Type:       notification.Type,
		SenderID:   notification.SenderID,
		ReceiverID: notification.ReceiverID,
		ActivityID: notification.ActivityID,
		ProposalID: notification.ProposalID,
		Title:      notification.Title,
		Body:       notification.Body,
		Payload:    notification.DecodePayload(),
		Status:     notification.Status,
		Action:     notification.Action,
		ReadAt:     notification.ReadAt,
		ActedAt:    notification.ActedAt,
		CreatedAt:  notification.CreatedAt,
	}
}

// NewNotificationResponseSlice maps a slice of notifications.
func NewNotificationResponseSlice(notifications []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		responses = append(responses, NewNotificationResponse(notification))
	}
	return responses
}

// ActOnNotificationRequest carries the counter-party's decision.
type ActOnNotificationRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

// UnreadCountResponse reports the number of unread notifications.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// ActResultResponse describes the outcome of acting on a notification.
type ActResultResponse struct {
	NotificationID      uint   `json:"notification_id"`
	Action              string `json:"action"`
	Type                string `json:"type"`
	ReplyNotificationID uint   `json:"reply_notification_id"`
}
