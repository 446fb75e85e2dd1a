package dto

import (
	"time"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// UploadSubmissionRequest is the multipart form payload accompanying the
// evidence file.
type UploadSubmissionRequest struct {
	ActivityID uint `json:"activity_id" validate:"required,gt=0"`
}

// SubmissionResponse is the API shape of an activity submission.
type SubmissionResponse struct {
	ID            uint      `json:"id"`
	StudentID     uint      `json:"student_id"`
	StudentName   string    `json:"student_name,omitempty"`
	ActivityID    uint      `json:"activity_id"`
	ActivityTitle string    `json:"activity_title,omitempty"`
	TemplatePath  string    `json:"template_path,omitempty"`
	FileURL       string    `json:"file_url,omitempty"`
	Status        string    `json:"status"`
	EarnedHours   float64   `json:"earned_hours"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSubmissionResponse maps a submission model to its response shape.
func NewSubmissionResponse(submission models.ActivitySubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:            submission.ID,
		StudentID:     submission.StudentID,
		StudentName:   submission.Student.FullName,
		ActivityID:    submission.ActivityID,
		ActivityTitle: submission.Activity.Title,
		TemplatePath:  submission.TemplatePath,
		FileURL:       submission.FileURL,
		Status:        submission.Status,
		EarnedHours:   submission.EarnedHours,
		CreatedAt:     submission.CreatedAt,
		UpdatedAt:     submission.UpdatedAt,
	}
}

// NewSubmissionResponseSlice maps a slice of submissions.
func NewSubmissionResponseSlice(submissions []models.ActivitySubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}

// ApprovalResponse reports the hours granted by an approval, after clipping
// against the credit ceiling.
type ApprovalResponse struct {
	Submission      SubmissionResponse `json:"submission"`
	EarnedHours     float64            `json:"earned_hours"`
	TotalHoursAfter float64            `json:"total_hours_after"`
}

// HoursSummaryResponse is the API shape of a processed hour verdict.
type HoursSummaryResponse struct {
	StudentUserID uint       `json:"student_user_id"`
	DoctorUserID  uint       `json:"doctor_user_id"`
	TotalHours    float64    `json:"total_hours"`
	Result        string     `json:"result"`
	ResultSentAt  *time.Time `json:"result_sent_at,omitempty"`
	CalculatedAt  time.Time  `json:"calculated_at"`
}

// NewHoursSummaryResponse maps an hours summary model.
func NewHoursSummaryResponse(summary models.HoursSummary) HoursSummaryResponse {
	return HoursSummaryResponse{
		StudentUserID: summary.StudentUserID,
		DoctorUserID:  summary.DoctorUserID,
		TotalHours:    summary.TotalHours,
		Result:        summary.Result,
		ResultSentAt:  summary.ResultSentAt,
		CalculatedAt:  summary.CalculatedAt,
	}
}

// NewHoursSummaryResponseSlice maps a slice of hour summaries.
func NewHoursSummaryResponseSlice(summaries []models.HoursSummary) []HoursSummaryResponse {
	responses := make([]HoursSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		responses = append(responses, NewHoursSummaryResponse(summary))
	}
	return responses
}

// PublishResultResponse reports the verdict notification delivered to the
// doctor.
type PublishResultResponse struct {
	Summary        HoursSummaryResponse `json:"summary"`
	NotificationID uint                 `json:"notification_id"`
}
