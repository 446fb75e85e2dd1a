package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// VolunteerRequestRepository handles persistence for volunteer requests.
type VolunteerRequestRepository interface {
	Upsert(ctx context.Context, request *models.VolunteerRequest) error
	GetByID(ctx context.Context, id uint) (models.VolunteerRequest, error)
	GetByPair(ctx context.Context, activityID, studentID uint) (models.VolunteerRequest, error)
	DecideIfPending(ctx context.Context, id uint, status string) (bool, error)
	DecidePairIfPending(ctx context.Context, activityID, studentID uint, status string) (bool, error)
	ListForOwner(ctx context.Context, ownerID uint) ([]models.VolunteerRequest, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.VolunteerRequest, error)
}

type volunteerRequestRepository struct {
	db *gorm.DB
}

// NewVolunteerRequestRepository constructs a repository backed by GORM.
func NewVolunteerRequestRepository(db *gorm.DB) VolunteerRequestRepository {
	return &volunteerRequestRepository{db: db}
}

func (r *volunteerRequestRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.VolunteerRequest{}).
		Preload("Activity").
		Preload("Student")
}

// Upsert inserts the request or, when the (activity, student) pair already
// exists, bumps updated_at only. A decided request is never reset to
// pending by a repeated create.
func (r *volunteerRequestRepository) Upsert(ctx context.Context, request *models.VolunteerRequest) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		Create(request).Error
}

func (r *volunteerRequestRepository) GetByID(ctx context.Context, id uint) (models.VolunteerRequest, error) {
	var request models.VolunteerRequest
	if err := r.baseQuery(ctx).First(&request, id).Error; err != nil {
		return models.VolunteerRequest{}, err
	}
	return request, nil
}

func (r *volunteerRequestRepository) GetByPair(ctx context.Context, activityID, studentID uint) (models.VolunteerRequest, error) {
	var request models.VolunteerRequest
	if err := r.baseQuery(ctx).
		Where("activity_id = ?", activityID).
		Where("student_id = ?", studentID).
		First(&request).Error; err != nil {
		return models.VolunteerRequest{}, err
	}
	return request, nil
}

// DecideIfPending applies the decision only when the row is still pending.
// It reports whether a row was updated; false means the request was already
// decided by a concurrent caller.
func (r *volunteerRequestRepository) DecideIfPending(ctx context.Context, id uint, status string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.VolunteerRequest{}).
		Where("id = ? AND status = ?", id, models.RequestStatusPending).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecidePairIfPending is the same guard keyed by (activity, student), used
// when the act entry point carries the pair instead of the row id.
func (r *volunteerRequestRepository) DecidePairIfPending(ctx context.Context, activityID, studentID uint, status string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.VolunteerRequest{}).
		Where("activity_id = ? AND student_id = ? AND status = ?", activityID, studentID, models.RequestStatusPending).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListForOwner returns every request targeting an activity owned by the
// given center user, newest first.
func (r *volunteerRequestRepository) ListForOwner(ctx context.Context, ownerID uint) ([]models.VolunteerRequest, error) {
	var requests []models.VolunteerRequest
	if err := r.baseQuery(ctx).
		Joins("JOIN volunteer_activities ON volunteer_activities.id = volunteer_requests.activity_id").
		Where("volunteer_activities.owner_id = ?", ownerID).
		Order("volunteer_requests.created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *volunteerRequestRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.VolunteerRequest, error) {
	var requests []models.VolunteerRequest
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
