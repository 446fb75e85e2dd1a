package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
)

// Request lifecycle errors.
var (
	ErrActivityNotFound          = errors.New("activity not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrRequestNotFound           = errors.New("volunteer request not found")
	ErrRequestAlreadyDecided     = errors.New("volunteer request already decided")
	ErrProposalNotFound          = errors.New("service proposal not found")
	ErrProposalAlreadyDecided    = errors.New("service proposal already decided")
	ErrNotificationNotActionable = errors.New("notification is not actionable")
	ErrNotificationAlreadyActed  = errors.New("notification already acted on")
	ErrNotActivityOwner          = errors.New("caller does not own the activity")
)

// RequestService owns the volunteer request and service proposal state
// machines. Every lifecycle transition goes through a guarded conditional
// update so the first of two racing decisions wins and the second observes
// a conflict.
type RequestService interface {
	CreateRequest(ctx context.Context, studentID uint, payload dto.CreateVolunteerRequest) (dto.CreateRequestResult, error)
	DecideRequest(ctx context.Context, requestID, deciderID uint, payload dto.DecideRequest) (dto.VolunteerRequestResponse, error)
	CreateProposal(ctx context.Context, studentID uint, payload dto.CreateProposalRequest) (dto.CreateProposalResult, error)
	ActOnNotification(ctx context.Context, notificationID, userID uint, payload dto.ActOnNotificationRequest) (dto.ActResultResponse, error)
	ListRequestsForOwner(ctx context.Context, ownerID uint) ([]dto.VolunteerRequestResponse, error)
	ListRequestsByStudent(ctx context.Context, studentID uint) ([]dto.VolunteerRequestResponse, error)
	ListProposals(ctx context.Context) ([]dto.ProposalResponse, error)
	ListProposalsByStudent(ctx context.Context, studentID uint) ([]dto.ProposalResponse, error)
}

type requestService struct {
	requests      repository.VolunteerRequestRepository
	proposals     repository.ServiceProposalRepository
	activities    repository.ActivityRepository
	users         repository.UserRepository
	submissions   repository.SubmissionRepository
	notifications repository.NotificationRepository
	notifier      NotificationService
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewRequestService constructs the request service.
func NewRequestService(
	requests repository.VolunteerRequestRepository,
	proposals repository.ServiceProposalRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	submissions repository.SubmissionRepository,
	notifications repository.NotificationRepository,
	notifier NotificationService,
	validate *validator.Validate,
	logger zerolog.Logger,
) RequestService {
	return &requestService{
		requests:      requests,
		proposals:     proposals,
		activities:    activities,
		users:         users,
		submissions:   submissions,
		notifications: notifications,
		notifier:      notifier,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "request_service").Logger(),
		tracer:        otel.Tracer("github.com/uniserve-app/uniserve-go-api/internal/service/request"),
	}
}

// CreateRequest records a student volunteering for an activity and notifies
// the owning center. Re-requesting the same activity refreshes the existing
// row without resetting a decided status.
func (s *requestService) CreateRequest(ctx context.Context, studentID uint, payload dto.CreateVolunteerRequest) (dto.CreateRequestResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "requests.create", trace.WithAttributes(
		attribute.Int64("activity.id", int64(payload.ActivityID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.CreateRequestResult{}, err
	}

	activity, err := s.activities.GetByID(spanCtx, payload.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CreateRequestResult{}, ErrActivityNotFound
		}
		return dto.CreateRequestResult{}, err
	}

	student, err := s.users.GetByID(spanCtx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CreateRequestResult{}, ErrUserNotFound
		}
		return dto.CreateRequestResult{}, err
	}

	request := models.VolunteerRequest{
		ActivityID: activity.ID,
		StudentID:  student.ID,
		Status:     models.RequestStatusPending,
	}
	if err := s.requests.Upsert(spanCtx, &request); err != nil {
		return dto.CreateRequestResult{}, err
	}

	// On a duplicate pair the insert is turned into a touch, so re-read the
	// authoritative row.
	current, err := s.requests.GetByPair(spanCtx, activity.ID, student.ID)
	if err != nil {
		return dto.CreateRequestResult{}, err
	}

	notification := models.Notification{
		Type:       models.NotificationTypeVolunteerRequest,
		SenderID:   student.ID,
		ReceiverID: activity.OwnerID,
		ActivityID: &activity.ID,
		Title:      "New volunteer request",
		Body:       fmt.Sprintf("%s volunteered for %s", student.FullName, activity.Title),
	}
	if err := notification.SetPayload(models.NotificationPayload{
		Kind:          models.PayloadKindVolunteerDecision,
		ActivityID:    activity.ID,
		StudentUserID: student.ID,
	}); err != nil {
		return dto.CreateRequestResult{}, err
	}

	created, err := s.notifier.Notify(spanCtx, &notification)
	if err != nil {
		return dto.CreateRequestResult{}, err
	}

	s.logger.Info().
		Uint("request_id", current.ID).
		Uint("activity_id", activity.ID).
		Uint("student_id", student.ID).
		Str("status", current.Status).
		Msg("volunteer request recorded")

	return dto.CreateRequestResult{
		RequestID:      current.ID,
		Status:         current.Status,
		NotificationID: created.ID,
	}, nil
}

// DecideRequest applies a center's decision directly on a request row. The
// guarded update makes a repeated or racing decision surface as a conflict
// instead of silently overwriting the first outcome.
func (s *requestService) DecideRequest(ctx context.Context, requestID, deciderID uint, payload dto.DecideRequest) (dto.VolunteerRequestResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "requests.decide", trace.WithAttributes(
		attribute.Int64("request.id", int64(requestID)),
		attribute.String("decision", payload.Decision),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.VolunteerRequestResponse{}, err
	}

	request, err := s.requests.GetByID(spanCtx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VolunteerRequestResponse{}, ErrRequestNotFound
		}
		return dto.VolunteerRequestResponse{}, err
	}
	if request.Activity.OwnerID != deciderID {
		return dto.VolunteerRequestResponse{}, ErrNotActivityOwner
	}
	if request.IsDecided() {
		return dto.VolunteerRequestResponse{}, ErrRequestAlreadyDecided
	}

	status := models.RequestStatusRejected
	if payload.Decision == "accept" {
		status = models.RequestStatusAccepted
	}

	updated, err := s.requests.DecideIfPending(spanCtx, request.ID, status)
	if err != nil {
		return dto.VolunteerRequestResponse{}, err
	}
	if !updated {
		return dto.VolunteerRequestResponse{}, ErrRequestAlreadyDecided
	}

	if status == models.RequestStatusAccepted {
		s.seedAcceptedSubmission(spanCtx, request.Activity, request.StudentID)
	}
	s.sendReply(spanCtx, s.requestReply(request.Activity, request.StudentID, deciderID, status))

	request.Status = status
	return dto.NewVolunteerRequestResponse(request), nil
}

// seedAcceptedSubmission creates the evidence submission slot for an accepted
// request. The decision is already committed, so a failure here is logged and
// never unwinds it.
func (s *requestService) seedAcceptedSubmission(ctx context.Context, activity models.VolunteerActivity, studentID uint) {
	submission := models.ActivitySubmission{
		StudentID:    studentID,
		ActivityID:   activity.ID,
		TemplatePath: activity.FormTemplatePath,
		Status:       models.SubmissionStatusPending,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		s.logger.Error().Err(err).
			Uint("activity_id", activity.ID).
			Uint("student_id", studentID).
			Msg("failed to seed submission for accepted request")
	}
}

// requestReply builds the informational reply telling the student the outcome
// of their request. Nil when the payload cannot be encoded.
func (s *requestService) requestReply(activity models.VolunteerActivity, studentID, deciderID uint, status string) *models.Notification {
	replyType := models.NotificationTypeRequestRejected
	verb := "rejected"
	if status == models.RequestStatusAccepted {
		replyType = models.NotificationTypeRequestAccepted
		verb = "accepted"
	}

	reply := models.Notification{
		Type:       replyType,
		SenderID:   deciderID,
		ReceiverID: studentID,
		ActivityID: &activity.ID,
		Title:      fmt.Sprintf("Request %s", verb),
		Body:       fmt.Sprintf("Your volunteer request for %s was %s", activity.Title, verb),
	}
	if err := reply.SetPayload(models.NotificationPayload{
		Kind:       models.PayloadKindInformational,
		ActivityID: activity.ID,
		DecisionBy: deciderID,
	}); err != nil {
		return nil
	}
	return &reply
}

// sendReply persists and delivers a decision reply. The transition it reports
// on is already committed, so a failure is logged, never unwound. Returns the
// reply notification id, zero when nothing was sent.
func (s *requestService) sendReply(ctx context.Context, reply *models.Notification) uint {
	if reply == nil {
		return 0
	}
	created, err := s.notifier.Notify(ctx, reply)
	if err != nil {
		s.logger.Warn().Err(err).
			Uint("receiver_id", reply.ReceiverID).
			Msg("failed to deliver decision reply")
		return 0
	}
	return created.ID
}

// CreateProposal stores a student's service proposal and fans a notification
// out to every active center account.
func (s *requestService) CreateProposal(ctx context.Context, studentID uint, payload dto.CreateProposalRequest) (dto.CreateProposalResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "proposals.create", trace.WithAttributes(
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.CreateProposalResult{}, err
	}

	student, err := s.users.GetByID(spanCtx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CreateProposalResult{}, ErrUserNotFound
		}
		return dto.CreateProposalResult{}, err
	}

	proposal := models.ServiceProposal{
		StudentID:   student.ID,
		Title:       s.sanitizer.Sanitize(payload.Title),
		Description: s.sanitizer.Sanitize(payload.Description),
		Status:      models.ProposalStatusPending,
	}
	if err := s.proposals.Create(spanCtx, &proposal); err != nil {
		return dto.CreateProposalResult{}, err
	}

	centers, err := s.users.ListActiveByRole(spanCtx, models.RoleCenter)
	if err != nil {
		return dto.CreateProposalResult{}, err
	}

	notified := 0
	for _, center := range centers {
		notification := models.Notification{
			Type:       models.NotificationTypeServiceProposal,
			SenderID:   student.ID,
			ReceiverID: center.ID,
			ProposalID: &proposal.ID,
			Title:      "New service proposal",
			Body:       fmt.Sprintf("%s proposed: %s", student.FullName, proposal.Title),
		}
		if err := notification.SetPayload(models.NotificationPayload{
			Kind:          models.PayloadKindProposalDecision,
			ProposalID:    proposal.ID,
			StudentUserID: student.ID,
		}); err != nil {
			s.logger.Error().Err(err).Uint("proposal_id", proposal.ID).Msg("failed to encode proposal payload")
			continue
		}
		if _, err := s.notifier.Notify(spanCtx, &notification); err != nil {
			s.logger.Warn().Err(err).
				Uint("proposal_id", proposal.ID).
				Uint("center_id", center.ID).
				Msg("failed to notify center of proposal")
			continue
		}
		notified++
	}

	s.logger.Info().
		Uint("proposal_id", proposal.ID).
		Uint("student_id", student.ID).
		Int("centers_notified", notified).
		Msg("service proposal created")

	proposal.Student = student
	return dto.CreateProposalResult{
		Proposal:        dto.NewProposalResponse(proposal),
		CentersNotified: notified,
	}, nil
}

// ActOnNotification resolves an accept/reject taken from the notification
// inbox. The stored payload kind decides which downstream record the action
// mutates; the type string is never re-parsed. The downstream transition is
// guarded first, then the notification itself flips to acted, and only then
// is the counter-party informed.
func (s *requestService) ActOnNotification(ctx context.Context, notificationID, userID uint, payload dto.ActOnNotificationRequest) (dto.ActResultResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.act", trace.WithAttributes(
		attribute.Int64("notification.id", int64(notificationID)),
		attribute.String("action", payload.Action),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.ActResultResponse{}, err
	}

	notification, err := s.notifications.GetForReceiver(spanCtx, notificationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActResultResponse{}, ErrNotificationNotFound
		}
		return dto.ActResultResponse{}, err
	}

	decoded := notification.DecodePayload()
	if !decoded.Actionable() {
		return dto.ActResultResponse{}, ErrNotificationNotActionable
	}
	if notification.Status == models.NotificationStatusActed {
		return dto.ActResultResponse{}, ErrNotificationAlreadyActed
	}

	var reply *models.Notification
	switch decoded.Kind {
	case models.PayloadKindVolunteerDecision:
		reply, err = s.actOnVolunteerRequest(spanCtx, decoded, userID, payload.Action)
	case models.PayloadKindProposalDecision:
		reply, err = s.actOnProposal(spanCtx, decoded, userID, payload.Action)
	default:
		return dto.ActResultResponse{}, ErrNotificationNotActionable
	}
	if err != nil {
		return dto.ActResultResponse{}, err
	}

	acted, err := s.notifications.MarkActed(spanCtx, notification.ID, payload.Action)
	if err != nil {
		return dto.ActResultResponse{}, err
	}
	if !acted {
		return dto.ActResultResponse{}, ErrNotificationAlreadyActed
	}
	s.notifier.InvalidateUnread(spanCtx, userID)

	// The counter-party hears about the outcome only after the acted mark
	// has landed.
	replyID := s.sendReply(spanCtx, reply)

	return dto.ActResultResponse{
		NotificationID:      notification.ID,
		Action:              payload.Action,
		Type:                notification.Type,
		ReplyNotificationID: replyID,
	}, nil
}

func (s *requestService) actOnVolunteerRequest(ctx context.Context, payload models.NotificationPayload, deciderID uint, action string) (*models.Notification, error) {
	status := models.RequestStatusRejected
	if action == "accept" {
		status = models.RequestStatusAccepted
	}

	updated, err := s.requests.DecidePairIfPending(ctx, payload.ActivityID, payload.StudentUserID, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrRequestAlreadyDecided
	}

	activity, err := s.activities.GetByID(ctx, payload.ActivityID)
	if err != nil {
		s.logger.Error().Err(err).Uint("activity_id", payload.ActivityID).Msg("decided request references missing activity")
		return nil, nil
	}

	if status == models.RequestStatusAccepted {
		s.seedAcceptedSubmission(ctx, activity, payload.StudentUserID)
	}
	return s.requestReply(activity, payload.StudentUserID, deciderID, status), nil
}

func (s *requestService) actOnProposal(ctx context.Context, payload models.NotificationPayload, deciderID uint, action string) (*models.Notification, error) {
	status := models.ProposalStatusRejected
	replyType := models.NotificationTypeProposalRejected
	verb := "rejected"
	if action == "accept" {
		status = models.ProposalStatusApproved
		replyType = models.NotificationTypeProposalApproved
		verb = "approved"
	}

	updated, err := s.proposals.DecideIfPending(ctx, payload.ProposalID, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrProposalAlreadyDecided
	}

	proposal, err := s.proposals.GetByID(ctx, payload.ProposalID)
	if err != nil {
		s.logger.Error().Err(err).Uint("proposal_id", payload.ProposalID).Msg("decided proposal vanished")
		return nil, nil
	}

	reply := models.Notification{
		Type:       replyType,
		SenderID:   deciderID,
		ReceiverID: proposal.StudentID,
		ProposalID: &proposal.ID,
		Title:      fmt.Sprintf("Proposal %s", verb),
		Body:       fmt.Sprintf("Your proposal %q was %s", proposal.Title, verb),
	}
	if err := reply.SetPayload(models.NotificationPayload{
		Kind:       models.PayloadKindInformational,
		ProposalID: proposal.ID,
		DecisionBy: deciderID,
	}); err != nil {
		return nil, nil
	}
	return &reply, nil
}

func (s *requestService) ListRequestsForOwner(ctx context.Context, ownerID uint) ([]dto.VolunteerRequestResponse, error) {
	requests, err := s.requests.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewVolunteerRequestResponseSlice(requests), nil
}

func (s *requestService) ListRequestsByStudent(ctx context.Context, studentID uint) ([]dto.VolunteerRequestResponse, error) {
	requests, err := s.requests.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewVolunteerRequestResponseSlice(requests), nil
}

func (s *requestService) ListProposals(ctx context.Context) ([]dto.ProposalResponse, error) {
	proposals, err := s.proposals.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewProposalResponseSlice(proposals), nil
}

func (s *requestService) ListProposalsByStudent(ctx context.Context, studentID uint) ([]dto.ProposalResponse, error) {
	proposals, err := s.proposals.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewProposalResponseSlice(proposals), nil
}
