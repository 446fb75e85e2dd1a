package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// SubmissionRepository handles persistence for activity submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.ActivitySubmission) error
	Replace(ctx context.Context, submission *models.ActivitySubmission) error
	GetByID(ctx context.Context, id uint) (models.ActivitySubmission, error)
	ReviewIfSubmitted(ctx context.Context, id uint, status string, earnedHours float64) (bool, error)
	SumApprovedHours(ctx context.Context, studentID uint, excludeID uint) (float64, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ActivitySubmission, error)
	ListForOwner(ctx context.Context, ownerID uint) ([]models.ActivitySubmission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs a repository backed by GORM.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ActivitySubmission{}).
		Preload("Activity").
		Preload("Student")
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.ActivitySubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// Replace removes any prior submission for the same (student, activity)
// pair and inserts the new row in one transaction. Last submission wins; no
// history of earlier attempts is kept.
func (r *submissionRepository) Replace(ctx context.Context, submission *models.ActivitySubmission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("student_id = ? AND activity_id = ?", submission.StudentID, submission.ActivityID).
			Delete(&models.ActivitySubmission{}).Error; err != nil {
			return err
		}
		return tx.Create(submission).Error
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.ActivitySubmission, error) {
	var submission models.ActivitySubmission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.ActivitySubmission{}, err
	}
	return submission, nil
}

// ReviewIfSubmitted applies the review outcome only when the submission is
// still awaiting review, so the first of two racing reviews wins. It reports
// whether a row was updated.
func (r *submissionRepository) ReviewIfSubmitted(ctx context.Context, id uint, status string, earnedHours float64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ActivitySubmission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusSubmitted).
		Updates(map[string]interface{}{"status": status, "earned_hours": earnedHours, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SumApprovedHours aggregates the student's earned hours over approved
// submissions, excluding the given submission id when non-zero.
func (r *submissionRepository) SumApprovedHours(ctx context.Context, studentID uint, excludeID uint) (float64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivitySubmission{}).
		Where("student_id = ? AND status = ?", studentID, models.SubmissionStatusApproved)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var total *float64
	if err := query.Select("SUM(earned_hours)").Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.ActivitySubmission, error) {
	var submissions []models.ActivitySubmission
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// ListForOwner returns the review queue for a center: every submission
// against an activity that center owns.
func (r *submissionRepository) ListForOwner(ctx context.Context, ownerID uint) ([]models.ActivitySubmission, error) {
	var submissions []models.ActivitySubmission
	if err := r.baseQuery(ctx).
		Joins("JOIN volunteer_activities ON volunteer_activities.id = activity_submissions.activity_id").
		Where("volunteer_activities.owner_id = ?", ownerID).
		Order("activity_submissions.created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
