package models

import "time"

// VolunteerRequest statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRejected = "rejected"
)

// ServiceProposal statuses.
const (
	ProposalStatusPending  = "pending"
	ProposalStatusApproved = "approved"
	ProposalStatusRejected = "rejected"
)

// VolunteerRequest is a student's request to join an activity. The
// (activity, student) pair is unique; a repeated request never resets an
// already decided status.
type VolunteerRequest struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActivityID uint              `gorm:"not null;uniqueIndex:idx_request_activity_student" json:"activity_id"`
	StudentID  uint              `gorm:"not null;uniqueIndex:idx_request_activity_student" json:"student_id"`
	Status     string            `gorm:"size:32;not null;default:pending" json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Activity   VolunteerActivity `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
	Student    User              `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsDecided reports whether the request has already been accepted or rejected.
func (r VolunteerRequest) IsDecided() bool {
	return r.Status != RequestStatusPending
}

// ServiceProposal is a student-authored suggestion for a new volunteer
// service, reviewed by the service centers.
type ServiceProposal struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;index" json:"student_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Status      string    `gorm:"size:32;not null;default:pending" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Student     User      `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
