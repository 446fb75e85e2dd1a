package dto

import (
	"time"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// CreateVolunteerRequest is the payload for a student volunteering for an
// activity.
type CreateVolunteerRequest struct {
	ActivityID uint `json:"activity_id" validate:"required,gt=0"`
}

// DecideRequest carries the accept/reject decision on a volunteer request.
type DecideRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
}

// CreateProposalRequest is the payload for a student proposing a new
// service.
type CreateProposalRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"required,min=3"`
}

// VolunteerRequestResponse is the API shape of a volunteer request.
type VolunteerRequestResponse struct {
	ID            uint      `json:"id"`
	ActivityID    uint      `json:"activity_id"`
	ActivityTitle string    `json:"activity_title,omitempty"`
	StudentID     uint      `json:"student_id"`
	StudentName   string    `json:"student_name,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewVolunteerRequestResponse maps a volunteer request model.
func NewVolunteerRequestResponse(request models.VolunteerRequest) VolunteerRequestResponse {
	return VolunteerRequestResponse{
		ID:            request.ID,
		ActivityID:    request.ActivityID,
		ActivityTitle: request.Activity.Title,
		StudentID:     request.StudentID,
		StudentName:   request.Student.FullName,
		Status:        request.Status,
		CreatedAt:     request.CreatedAt,
		UpdatedAt:     request.UpdatedAt,
	}
}

// NewVolunteerRequestResponseSlice maps a slice of volunteer requests.
func NewVolunteerRequestResponseSlice(requests []models.VolunteerRequest) []VolunteerRequestResponse {
	responses := make([]VolunteerRequestResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, NewVolunteerRequestResponse(request))
	}
	return responses
}

// ProposalResponse is the API shape of a service proposal.
type ProposalResponse struct {
	ID          uint      `json:"id"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProposalResponse maps a service proposal model.
func NewProposalResponse(proposal models.ServiceProposal) ProposalResponse {
	return ProposalResponse{
		ID:          proposal.ID,
		StudentID:   proposal.StudentID,
		StudentName: proposal.Student.FullName,
		Title:       proposal.Title,
		Description: proposal.Description,
		Status:      proposal.Status,
		CreatedAt:   proposal.CreatedAt,
		UpdatedAt:   proposal.UpdatedAt,
	}
}

// NewProposalResponseSlice maps a slice of proposals.
func NewProposalResponseSlice(proposals []models.ServiceProposal) []ProposalResponse {
	responses := make([]ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		responses = append(responses, NewProposalResponse(proposal))
	}
	return responses
}

// CreateRequestResult reports the created/refreshed request and the
// notification emitted to the activity owner.
type CreateRequestResult struct {
	RequestID      uint   `json:"request_id"`
	Status         string `json:"status"`
	NotificationID uint   `json:"notification_id"`
}

// CreateProposalResult reports the created proposal and how many centers
// were notified.
type CreateProposalResult struct {
	Proposal        ProposalResponse `json:"proposal"`
	CentersNotified int              `json:"centers_notified"`
}
