package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
)

// Credit engine errors.
var (
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrSubmissionNotReviewable = errors.New("submission is not awaiting review")
	ErrCreditExhausted         = errors.New("credit ceiling reached")
	ErrSummaryNotFound         = errors.New("hours summary not found")
	ErrResultAlreadySent       = errors.New("hours result already sent")
	ErrUnsupportedFileType     = errors.New("unsupported file type")
)

var allowedUploadTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// FileUploader stores an uploaded document and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// CreditService owns evidence submissions and the credit ledger built on
// them. Approvals for one student are serialized so two concurrent reviews
// can never both read a stale total and overshoot the ceiling together.
type CreditService interface {
	Upload(ctx context.Context, studentID uint, payload dto.UploadSubmissionRequest, filename string, data []byte) (dto.SubmissionResponse, error)
	Approve(ctx context.Context, submissionID, reviewerID uint) (dto.ApprovalResponse, error)
	Reject(ctx context.Context, submissionID, reviewerID uint) (dto.SubmissionResponse, error)
	ProcessHours(ctx context.Context) ([]dto.HoursSummaryResponse, error)
	PublishResult(ctx context.Context, studentUserID, doctorUserID uint) (dto.PublishResultResponse, error)
	ListStudentSubmissions(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error)
	ListReviewQueue(ctx context.Context, ownerID uint) ([]dto.SubmissionResponse, error)
	ListSummariesForDoctor(ctx context.Context, doctorUserID uint) ([]dto.HoursSummaryResponse, error)
}

type creditService struct {
	submissions repository.SubmissionRepository
	activities  repository.ActivityRepository
	summaries   repository.HoursSummaryRepository
	notifier    NotificationService
	uploader    FileUploader
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer

	locksMu sync.Mutex
	locks   map[uint]*sync.Mutex
}

// NewCreditService constructs the credit service. A nil uploader disables
// file storage, leaving submissions with an empty file URL; tests use that
// mode.
func NewCreditService(
	submissions repository.SubmissionRepository,
	activities repository.ActivityRepository,
	summaries repository.HoursSummaryRepository,
	notifier NotificationService,
	uploader FileUploader,
	validate *validator.Validate,
	logger zerolog.Logger,
) CreditService {
	return &creditService{
		submissions: submissions,
		activities:  activities,
		summaries:   summaries,
		notifier:    notifier,
		uploader:    uploader,
		validator:   validate,
		logger:      logger.With().Str("component", "credit_service").Logger(),
		tracer:      otel.Tracer("github.com/uniserve-app/uniserve-go-api/internal/service/credit"),
		locks:       make(map[uint]*sync.Mutex),
	}
}

// studentLock returns the mutex serializing approvals for one student. The
// map only ever grows; its size is bounded by the student population.
func (s *creditService) studentLock(studentID uint) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[studentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[studentID] = lock
	}
	return lock
}

// Upload stores signed evidence for an activity. A new upload replaces any
// earlier submission for the same (student, activity) pair, whatever state
// it was in.
func (s *creditService) Upload(ctx context.Context, studentID uint, payload dto.UploadSubmissionRequest, filename string, data []byte) (dto.SubmissionResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "submissions.upload", trace.WithAttributes(
		attribute.Int64("activity.id", int64(payload.ActivityID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	activity, err := s.activities.GetByID(spanCtx, payload.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrActivityNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	detected := mimetype.Detect(data)
	if !isAllowedUploadType(detected.String()) {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, detected.String())
	}

	fileURL := ""
	if s.uploader != nil {
		fileURL, err = s.uploader.Upload(spanCtx, filename, bytes.NewReader(data))
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("failed to store evidence file: %w", err)
		}
	}

	submission := models.ActivitySubmission{
		StudentID:    studentID,
		ActivityID:   activity.ID,
		TemplatePath: activity.FormTemplatePath,
		FileURL:      fileURL,
		Status:       models.SubmissionStatusSubmitted,
	}
	if err := s.submissions.Replace(spanCtx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("activity_id", activity.ID).
		Uint("student_id", studentID).
		Str("mime", detected.String()).
		Msg("evidence submitted")

	submission.Activity = activity
	return dto.NewSubmissionResponse(submission), nil
}

func isAllowedUploadType(mime string) bool {
	for _, allowed := range allowedUploadTypes {
		if strings.EqualFold(mime, allowed) {
			return true
		}
	}
	return false
}

// Approve grants the activity's hours to the student, clipped so the
// accumulated approved total never exceeds the ceiling. A student already at
// the ceiling cannot be granted anything and the review fails.
func (s *creditService) Approve(ctx context.Context, submissionID, reviewerID uint) (dto.ApprovalResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "submissions.approve", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	submission, err := s.reviewableSubmission(spanCtx, submissionID, reviewerID)
	if err != nil {
		return dto.ApprovalResponse{}, err
	}

	lock := s.studentLock(submission.StudentID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a concurrent approval may have just landed.
	submission, err = s.reviewableSubmission(spanCtx, submissionID, reviewerID)
	if err != nil {
		return dto.ApprovalResponse{}, err
	}

	total, err := s.submissions.SumApprovedHours(spanCtx, submission.StudentID, submission.ID)
	if err != nil {
		return dto.ApprovalResponse{}, err
	}
	if total >= models.CreditCeiling {
		return dto.ApprovalResponse{}, ErrCreditExhausted
	}

	grant := submission.Activity.ProgressPoints
	if remaining := models.CreditCeiling - total; grant > remaining {
		grant = remaining
	}

	reviewed, err := s.submissions.ReviewIfSubmitted(spanCtx, submission.ID, models.SubmissionStatusApproved, grant)
	if err != nil {
		return dto.ApprovalResponse{}, err
	}
	if !reviewed {
		return dto.ApprovalResponse{}, ErrSubmissionNotReviewable
	}
	submission.Status = models.SubmissionStatusApproved
	submission.EarnedHours = grant

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", submission.StudentID).
		Float64("earned_hours", grant).
		Float64("total_hours", total+grant).
		Msg("submission approved")

	s.notifyReview(spanCtx, submission, reviewerID, "approved",
		fmt.Sprintf("Your submission for %s was approved for %.1f hours", submission.Activity.Title, grant))

	return dto.ApprovalResponse{
		Submission:      dto.NewSubmissionResponse(submission),
		EarnedHours:     grant,
		TotalHoursAfter: total + grant,
	}, nil
}

// Reject marks the submission rejected without granting hours. The guarded
// write means a review that landed first keeps its outcome.
func (s *creditService) Reject(ctx context.Context, submissionID, reviewerID uint) (dto.SubmissionResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "submissions.reject", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	submission, err := s.reviewableSubmission(spanCtx, submissionID, reviewerID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	reviewed, err := s.submissions.ReviewIfSubmitted(spanCtx, submissionID, models.SubmissionStatusRejected, 0)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !reviewed {
		return dto.SubmissionResponse{}, ErrSubmissionNotReviewable
	}
	submission.Status = models.SubmissionStatusRejected
	submission.EarnedHours = 0

	s.notifyReview(spanCtx, submission, reviewerID, "rejected",
		fmt.Sprintf("Your submission for %s was rejected", submission.Activity.Title))

	return dto.NewSubmissionResponse(submission), nil
}

// reviewableSubmission loads the submission and checks that the caller owns
// the activity and the submission is awaiting review.
func (s *creditService) reviewableSubmission(ctx context.Context, submissionID, reviewerID uint) (models.ActivitySubmission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ActivitySubmission{}, ErrSubmissionNotFound
		}
		return models.ActivitySubmission{}, err
	}
	if submission.Activity.OwnerID != reviewerID {
		return models.ActivitySubmission{}, ErrNotActivityOwner
	}
	if submission.Status != models.SubmissionStatusSubmitted {
		return models.ActivitySubmission{}, ErrSubmissionNotReviewable
	}
	return submission, nil
}

// notifyReview tells the student about a review outcome. The review is
// already committed; a failed notification is logged, not propagated.
func (s *creditService) notifyReview(ctx context.Context, submission models.ActivitySubmission, reviewerID uint, verb, body string) {
	notification := models.Notification{
		Type:       models.NotificationTypeRequestAccepted,
		SenderID:   reviewerID,
		ReceiverID: submission.StudentID,
		ActivityID: &submission.ActivityID,
		Title:      fmt.Sprintf("Submission %s", verb),
		Body:       body,
	}
	if verb == "rejected" {
		notification.Type = models.NotificationTypeRequestRejected
	}
	if err := notification.SetPayload(models.NotificationPayload{
		Kind:       models.PayloadKindInformational,
		ActivityID: submission.ActivityID,
		DecisionBy: reviewerID,
	}); err != nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, &notification); err != nil {
		s.logger.Warn().Err(err).
			Uint("student_id", submission.StudentID).
			Msg("failed to notify student of review outcome")
	}
}

// ProcessHours recalculates the pass/fail verdict for every supervised
// student from their approved submissions. An existing delivered verdict
// keeps its sent marker through recalculation.
func (s *creditService) ProcessHours(ctx context.Context) ([]dto.HoursSummaryResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "hours.process")
	defer span.End()

	rows, err := s.summaries.AggregateApproved(spanCtx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summaries := make([]models.HoursSummary, 0, len(rows))
	for _, row := range rows {
		result := models.HoursResultFail
		if row.TotalHours >= models.CreditCeiling {
			result = models.HoursResultPass
		}
		summaries = append(summaries, models.HoursSummary{
			StudentUserID: row.StudentUserID,
			DoctorUserID:  row.DoctorUserID,
			TotalHours:    row.TotalHours,
			Result:        result,
			CalculatedAt:  now,
		})
	}

	if err := s.summaries.UpsertSummaries(spanCtx, summaries); err != nil {
		return nil, err
	}

	s.logger.Info().Int("summaries", len(summaries)).Msg("hours processed")

	return dto.NewHoursSummaryResponseSlice(summaries), nil
}

// PublishResult delivers the processed verdict to the student, at most once
// per (student, doctor) pair. A second publish observes the sent marker and
// fails with a conflict.
func (s *creditService) PublishResult(ctx context.Context, studentUserID, doctorUserID uint) (dto.PublishResultResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "hours.publish", trace.WithAttributes(
		attribute.Int64("student.id", int64(studentUserID)),
		attribute.Int64("doctor.id", int64(doctorUserID)),
	))
	defer span.End()

	summary, err := s.summaries.GetByPair(spanCtx, studentUserID, doctorUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PublishResultResponse{}, ErrSummaryNotFound
		}
		return dto.PublishResultResponse{}, err
	}

	sent, err := s.summaries.MarkResultSent(spanCtx, summary.ID)
	if err != nil {
		return dto.PublishResultResponse{}, err
	}
	if !sent {
		return dto.PublishResultResponse{}, ErrResultAlreadySent
	}

	notification := models.Notification{
		Type:       models.NotificationTypeHoursResult,
		SenderID:   doctorUserID,
		ReceiverID: studentUserID,
		Title:      "Volunteering hours result",
		Body:       fmt.Sprintf("You completed %.1f hours: %s", summary.TotalHours, summary.Result),
	}
	if err := notification.SetPayload(models.NotificationPayload{
		Kind:       models.PayloadKindInformational,
		DecisionBy: doctorUserID,
		TotalHours: summary.TotalHours,
		Result:     summary.Result,
	}); err != nil {
		return dto.PublishResultResponse{}, err
	}

	created, err := s.notifier.Notify(spanCtx, &notification)
	if err != nil {
		// The sent marker is already stamped; surface the failure but do
		// not unset it, the caller can inspect and retry out of band.
		s.logger.Error().Err(err).
			Uint("summary_id", summary.ID).
			Msg("verdict notification failed after marking sent")
		return dto.PublishResultResponse{}, err
	}

	now := time.Now()
	summary.ResultSentAt = &now

	return dto.PublishResultResponse{
		Summary:        dto.NewHoursSummaryResponse(summary),
		NotificationID: created.ID,
	}, nil
}

func (s *creditService) ListStudentSubmissions(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *creditService) ListReviewQueue(ctx context.Context, ownerID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *creditService) ListSummariesForDoctor(ctx context.Context, doctorUserID uint) ([]dto.HoursSummaryResponse, error) {
	summaries, err := s.summaries.ListByDoctor(ctx, doctorUserID)
	if err != nil {
		return nil, err
	}
	return dto.NewHoursSummaryResponseSlice(summaries), nil
}
