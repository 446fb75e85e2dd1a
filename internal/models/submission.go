package models

import "time"

// ActivitySubmission statuses.
const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusApproved  = "approved"
	SubmissionStatusRejected  = "rejected"
)

// CreditCeiling is the hard maximum of accumulated approved hours per
// student. Approvals near the ceiling are clipped so the sum never exceeds
// it.
const CreditCeiling = 50.0

// HoursSummary results.
const (
	HoursResultPass = "pass"
	HoursResultFail = "fail"
)

// ActivitySubmission tracks the signed evidence a student uploads for one
// activity. At most one submission is in flight per (student, activity); a
// new upload replaces the previous one.
type ActivitySubmission struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	StudentID    uint              `gorm:"not null;index:idx_submission_student_activity" json:"student_id"`
	ActivityID   uint              `gorm:"not null;index:idx_submission_student_activity" json:"activity_id"`
	TemplatePath string            `gorm:"size:512" json:"template_path"`
	FileURL      string            `gorm:"size:512" json:"file_url"`
	Status       string            `gorm:"size:32;not null;default:pending" json:"status"`
	EarnedHours  float64           `gorm:"not null;default:0" json:"earned_hours"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Activity     VolunteerActivity `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
	Student      User              `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// HoursSummary is the processed pass/fail verdict for one (student, doctor)
// pair. ResultSentAt is the single idempotency guard against delivering the
// verdict notification twice.
type HoursSummary struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StudentUserID uint       `gorm:"not null;uniqueIndex:idx_summary_student_doctor" json:"student_user_id"`
	DoctorUserID  uint       `gorm:"not null;uniqueIndex:idx_summary_student_doctor" json:"doctor_user_id"`
	TotalHours    float64    `gorm:"not null;default:0" json:"total_hours"`
	Result        string     `gorm:"size:16;not null" json:"result"`
	ResultSentAt  *time.Time `json:"result_sent_at"`
	CalculatedAt  time.Time  `json:"calculated_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
