package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Notification types.
const (
	NotificationTypeVolunteerRequest = "volunteer_request"
	NotificationTypeServiceProposal  = "service_proposal"
	NotificationTypeRequestAccepted  = "request_accepted"
	NotificationTypeRequestRejected  = "request_rejected"
	NotificationTypeProposalApproved = "proposal_approved"
	NotificationTypeProposalRejected = "proposal_rejected"
	NotificationTypeHoursResult      = "hours_result"
)

// Notification statuses.
const (
	NotificationStatusUnread = "unread"
	NotificationStatusRead   = "read"
	NotificationStatusActed  = "acted"
)

// Payload kinds. The kind is resolved once when the notification is created
// and decides which downstream record an act call mutates; act handlers
// never re-infer it from the notification type string.
const (
	PayloadKindVolunteerDecision = "volunteer_decision"
	PayloadKindProposalDecision  = "proposal_decision"
	PayloadKindInformational     = "informational"
)

// NotificationPayload is the structured payload persisted with every
// notification. It is the sole durable description of the action the
// receiver may take.
type NotificationPayload struct {
	Kind          string  `json:"kind"`
	ActivityID    uint    `json:"activity_id,omitempty"`
	ProposalID    uint    `json:"proposal_id,omitempty"`
	StudentUserID uint    `json:"student_user_id,omitempty"`
	DecisionBy    uint    `json:"decision_by,omitempty"`
	TotalHours    float64 `json:"total_hours,omitempty"`
	Result        string  `json:"result,omitempty"`
}

// Actionable reports whether the payload kind permits an accept/reject act.
func (p NotificationPayload) Actionable() bool {
	return p.Kind == PayloadKindVolunteerDecision || p.Kind == PayloadKindProposalDecision
}

// Notification is a durable record of a message addressed to one user,
// created as a side effect of a lifecycle transition.
type Notification struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Type       string         `gorm:"size:64;not null" json:"type"`
	SenderID   uint           `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint           `gorm:"not null;index" json:"receiver_id"`
	ActivityID *uint          `gorm:"index" json:"activity_id"`
	ProposalID *uint          `gorm:"index" json:"proposal_id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	Body       string         `gorm:"type:text" json:"body"`
	Payload    datatypes.JSON `gorm:"type:json" json:"payload"`
	Status     string         `gorm:"size:32;not null;default:unread;index" json:"status"`
	Action     *string        `gorm:"size:16" json:"action"`
	ReadAt     *time.Time     `json:"read_at"`
	ActedAt    *time.Time     `json:"acted_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SetPayload marshals the structured payload into the JSON column.
func (n *Notification) SetPayload(payload NotificationPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	n.Payload = datatypes.JSON(raw)
	return nil
}

// DecodePayload unmarshals the stored payload. A missing or malformed
// payload yields the zero value, which is never actionable.
func (n Notification) DecodePayload() NotificationPayload {
	var payload NotificationPayload
	if len(n.Payload) == 0 {
		return payload
	}
	if err := json.Unmarshal(n.Payload, &payload); err != nil {
		return NotificationPayload{}
	}
	return payload
}
