package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
)

type requestFixture struct {
	db            *gorm.DB
	notifications repository.NotificationRepository
	submissions   repository.SubmissionRepository
	requests      repository.VolunteerRequestRepository
	proposals     repository.ServiceProposalRepository
	notifier      NotificationService
	svc           RequestService
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()

	db := testDB(t)
	notificationRepo := repository.NewNotificationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	requestRepo := repository.NewVolunteerRequestRepository(db)
	proposalRepo := repository.NewServiceProposalRepository(db)

	notifier := NewNotificationService(notificationRepo, nil, nil, "", nil, testLogger())
	svc := NewRequestService(
		requestRepo,
		proposalRepo,
		repository.NewActivityRepository(db),
		repository.NewUserRepository(db),
		submissionRepo,
		notificationRepo,
		notifier,
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	return &requestFixture{
		db:            db,
		notifications: notificationRepo,
		submissions:   submissionRepo,
		requests:      requestRepo,
		proposals:     proposalRepo,
		notifier:      notifier,
		svc:           svc,
	}
}

func (f *requestFixture) seedUser(t *testing.T, name, email, role string) models.User {
	t.Helper()
	user := models.User{FullName: name, Email: email, Role: role, Active: true}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *requestFixture) seedActivity(t *testing.T, ownerID uint, points float64) models.VolunteerActivity {
	t.Helper()
	activity := models.VolunteerActivity{
		Title:            "Blood Drive",
		Description:      "Campus blood donation drive",
		OwnerID:          ownerID,
		ProgressPoints:   points,
		FormTemplatePath: "templates/blood-drive.pdf",
	}
	require.NoError(t, f.db.Create(&activity).Error)
	return activity
}

func TestCreateRequestNotifiesOwner(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	result, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)
	require.NotZero(t, result.RequestID)
	require.Equal(t, models.RequestStatusPending, result.Status)
	require.NotZero(t, result.NotificationID)

	notification, err := f.notifications.GetForReceiver(context.Background(), result.NotificationID, center.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationTypeVolunteerRequest, notification.Type)

	payload := notification.DecodePayload()
	require.True(t, payload.Actionable())
	require.Equal(t, models.PayloadKindVolunteerDecision, payload.Kind)
	require.Equal(t, activity.ID, payload.ActivityID)
	require.Equal(t, student.ID, payload.StudentUserID)
}

func TestCreateRequestRepeatKeepsSingleRow(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	first, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	second, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)
	require.Equal(t, first.RequestID, second.RequestID)

	var count int64
	require.NoError(t, f.db.Model(&models.VolunteerRequest{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCreateRequestRepeatNeverResetsDecision(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	_, err = f.svc.DecideRequest(context.Background(), created.RequestID, center.ID, dto.DecideRequest{Decision: "accept"})
	require.NoError(t, err)

	repeated, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAccepted, repeated.Status)
}

func TestCreateRequestActivityMissing(t *testing.T) {
	f := newRequestFixture(t)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)

	_, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: 999})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestDecideRequestRequiresOwnership(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	other := f.seedUser(t, "Other", "other@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	_, err = f.svc.DecideRequest(context.Background(), created.RequestID, other.ID, dto.DecideRequest{Decision: "accept"})
	require.ErrorIs(t, err, ErrNotActivityOwner)
}

func TestDecideRequestAcceptSeedsSubmission(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	decided, err := f.svc.DecideRequest(context.Background(), created.RequestID, center.ID, dto.DecideRequest{Decision: "accept"})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAccepted, decided.Status)

	submissions, err := f.submissions.ListByStudent(context.Background(), student.ID)
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	require.Equal(t, models.SubmissionStatusPending, submissions[0].Status)
	require.Equal(t, activity.FormTemplatePath, submissions[0].TemplatePath)

	// The student got an informational reply.
	replies, err := f.notifications.ListByReceiver(context.Background(), student.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, models.NotificationTypeRequestAccepted, replies[0].Type)
	require.False(t, replies[0].DecodePayload().Actionable())

	// A repeated decision observes a conflict.
	_, err = f.svc.DecideRequest(context.Background(), created.RequestID, center.ID, dto.DecideRequest{Decision: "reject"})
	require.ErrorIs(t, err, ErrRequestAlreadyDecided)
}

func TestActOnNotificationAccept(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	result, err := f.svc.ActOnNotification(context.Background(), created.NotificationID, center.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.NoError(t, err)
	require.Equal(t, "accept", result.Action)
	require.NotZero(t, result.ReplyNotificationID)

	request, err := f.requests.GetByID(context.Background(), created.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAccepted, request.Status)

	acted, err := f.notifications.GetForReceiver(context.Background(), created.NotificationID, center.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusActed, acted.Status)
	require.NotNil(t, acted.Action)
	require.Equal(t, "accept", *acted.Action)

	// Acting again conflicts.
	_, err = f.svc.ActOnNotification(context.Background(), created.NotificationID, center.ID, dto.ActOnNotificationRequest{Action: "reject"})
	require.ErrorIs(t, err, ErrNotificationAlreadyActed)
}

// actedMarkStuckRepo delegates everything to the real repository except
// MarkActed, which always fails.
type actedMarkStuckRepo struct {
	repository.NotificationRepository
}

func (actedMarkStuckRepo) MarkActed(context.Context, uint, string) (bool, error) {
	return false, errors.New("notifications table locked")
}

func TestActOnNotificationHoldsReplyUntilActedMark(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	svc := NewRequestService(
		f.requests,
		f.proposals,
		repository.NewActivityRepository(f.db),
		repository.NewUserRepository(f.db),
		f.submissions,
		actedMarkStuckRepo{f.notifications},
		f.notifier,
		validator.New(validator.WithRequiredStructEnabled()),
		testLogger(),
	)

	_, err = svc.ActOnNotification(context.Background(), created.NotificationID, center.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.Error(t, err)

	// The downstream transition landed before the failure.
	request, err := f.requests.GetByID(context.Background(), created.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusAccepted, request.Status)

	// But the student was never told while the inbox entry is still pending
	// its acted mark.
	replies, err := f.notifications.ListByReceiver(context.Background(), student.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, replies)

	source, err := f.notifications.GetForReceiver(context.Background(), created.NotificationID, center.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationStatusUnread, source.Status)
}

func TestActOnNotificationAfterDirectDecision(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)
	activity := f.seedActivity(t, center.ID, 10)

	created, err := f.svc.CreateRequest(context.Background(), student.ID, dto.CreateVolunteerRequest{ActivityID: activity.ID})
	require.NoError(t, err)

	_, err = f.svc.DecideRequest(context.Background(), created.RequestID, center.ID, dto.DecideRequest{Decision: "reject"})
	require.NoError(t, err)

	// The inbox entry is still unread, but the downstream guard loses.
	_, err = f.svc.ActOnNotification(context.Background(), created.NotificationID, center.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.ErrorIs(t, err, ErrRequestAlreadyDecided)

	request, err := f.requests.GetByID(context.Background(), created.RequestID)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusRejected, request.Status)
}

func TestActOnInformationalNotification(t *testing.T) {
	f := newRequestFixture(t)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)

	notification := models.Notification{
		Type:       models.NotificationTypeHoursResult,
		SenderID:   1,
		ReceiverID: student.ID,
		Title:      "Volunteering hours result",
	}
	require.NoError(t, notification.SetPayload(models.NotificationPayload{
		Kind:       models.PayloadKindInformational,
		TotalHours: 50,
		Result:     models.HoursResultPass,
	}))
	require.NoError(t, f.notifications.Create(context.Background(), &notification))

	_, err := f.svc.ActOnNotification(context.Background(), notification.ID, student.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.ErrorIs(t, err, ErrNotificationNotActionable)
}

func TestActOnNotificationMalformedPayload(t *testing.T) {
	f := newRequestFixture(t)
	center := f.seedUser(t, "Center", "center@test.dev", models.RoleCenter)

	notification := models.Notification{
		Type:       models.NotificationTypeVolunteerRequest,
		SenderID:   1,
		ReceiverID: center.ID,
		Title:      "New volunteer request",
		Payload:    datatypes.JSON(`{"kind":`),
	}
	require.NoError(t, f.notifications.Create(context.Background(), &notification))

	_, err := f.svc.ActOnNotification(context.Background(), notification.ID, center.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.ErrorIs(t, err, ErrNotificationNotActionable)
}

func TestCreateProposalFansOutToCenters(t *testing.T) {
	f := newRequestFixture(t)
	centerA := f.seedUser(t, "Center A", "center-a@test.dev", models.RoleCenter)
	centerB := f.seedUser(t, "Center B", "center-b@test.dev", models.RoleCenter)
	inactive := models.User{FullName: "Closed", Email: "closed@test.dev", Role: models.RoleCenter, Active: false}
	require.NoError(t, f.db.Create(&inactive).Error)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)

	result, err := f.svc.CreateProposal(context.Background(), student.ID, dto.CreateProposalRequest{
		Title:       "Beach cleanup <script>alert('x')</script>",
		Description: "Organize a coastal cleanup day",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.CentersNotified)
	require.NotContains(t, result.Proposal.Title, "<script>")

	for _, center := range []models.User{centerA, centerB} {
		inbox, err := f.notifications.ListByReceiver(context.Background(), center.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		require.Equal(t, models.NotificationTypeServiceProposal, inbox[0].Type)
		require.Equal(t, models.PayloadKindProposalDecision, inbox[0].DecodePayload().Kind)
	}

	inboxInactive, err := f.notifications.ListByReceiver(context.Background(), inactive.ID, 10, 0)
	require.NoError(t, err)
	require.Empty(t, inboxInactive)
}

func TestActOnProposalFirstDecisionWins(t *testing.T) {
	f := newRequestFixture(t)
	centerA := f.seedUser(t, "Center A", "center-a@test.dev", models.RoleCenter)
	centerB := f.seedUser(t, "Center B", "center-b@test.dev", models.RoleCenter)
	student := f.seedUser(t, "Student", "student@test.dev", models.RoleStudent)

	created, err := f.svc.CreateProposal(context.Background(), student.ID, dto.CreateProposalRequest{
		Title:       "Park restoration",
		Description: "Restore the north park benches",
	})
	require.NoError(t, err)

	inboxA, err := f.notifications.ListByReceiver(context.Background(), centerA.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, inboxA, 1)
	inboxB, err := f.notifications.ListByReceiver(context.Background(), centerB.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, inboxB, 1)

	result, err := f.svc.ActOnNotification(context.Background(), inboxA[0].ID, centerA.ID, dto.ActOnNotificationRequest{Action: "accept"})
	require.NoError(t, err)
	require.NotZero(t, result.ReplyNotificationID)

	proposal, err := f.proposals.GetByID(context.Background(), created.Proposal.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProposalStatusApproved, proposal.Status)

	// The second center's copy now loses the downstream guard.
	_, err = f.svc.ActOnNotification(context.Background(), inboxB[0].ID, centerB.ID, dto.ActOnNotificationRequest{Action: "reject"})
	require.ErrorIs(t, err, ErrProposalAlreadyDecided)

	replies, err := f.notifications.ListByReceiver(context.Background(), student.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Equal(t, models.NotificationTypeProposalApproved, replies[0].Type)
}
