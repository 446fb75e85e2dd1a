package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// HoursAggregateRow is one (student, doctor) aggregate produced by the
// hours processing query.
type HoursAggregateRow struct {
	StudentUserID uint
	DoctorUserID  uint
	TotalHours    float64
}

// HoursSummaryRepository handles persistence for processed hour verdicts.
type HoursSummaryRepository interface {
	AggregateApproved(ctx context.Context) ([]HoursAggregateRow, error)
	UpsertSummaries(ctx context.Context, summaries []models.HoursSummary) error
	GetByPair(ctx context.Context, studentUserID, doctorUserID uint) (models.HoursSummary, error)
	MarkResultSent(ctx context.Context, id uint) (bool, error)
	ListByDoctor(ctx context.Context, doctorUserID uint) ([]models.HoursSummary, error)
}

type hoursSummaryRepository struct {
	db *gorm.DB
}

// NewHoursSummaryRepository constructs a repository backed by GORM.
func NewHoursSummaryRepository(db *gorm.DB) HoursSummaryRepository {
	return &hoursSummaryRepository{db: db}
}

// AggregateApproved sums approved submission hours per supervised student,
// joined through the student-doctor assignment.
func (r *hoursSummaryRepository) AggregateApproved(ctx context.Context) ([]HoursAggregateRow, error) {
	var rows []HoursAggregateRow
	if err := r.db.WithContext(ctx).Model(&models.ActivitySubmission{}).
		Select("student_doctors.student_user_id AS student_user_id, student_doctors.doctor_user_id AS doctor_user_id, SUM(activity_submissions.earned_hours) AS total_hours").
		Joins("JOIN student_doctors ON student_doctors.student_user_id = activity_submissions.student_id").
		Where("activity_submissions.status = ?", models.SubmissionStatusApproved).
		Group("student_doctors.student_user_id, student_doctors.doctor_user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertSummaries writes the recalculated totals, keyed by the
// (student, doctor) pair. Recalculation never clears result_sent_at: a
// verdict already delivered stays delivered.
func (r *hoursSummaryRepository) UpsertSummaries(ctx context.Context, summaries []models.HoursSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_user_id"}, {Name: "doctor_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_hours", "result", "calculated_at", "updated_at"}),
		}).
		Create(&summaries).Error
}

func (r *hoursSummaryRepository) GetByPair(ctx context.Context, studentUserID, doctorUserID uint) (models.HoursSummary, error) {
	var summary models.HoursSummary
	if err := r.db.WithContext(ctx).
		Where("student_user_id = ? AND doctor_user_id = ?", studentUserID, doctorUserID).
		First(&summary).Error; err != nil {
		return models.HoursSummary{}, err
	}
	return summary, nil
}

// MarkResultSent stamps result_sent_at only when it is still unset, so the
// verdict notification goes out at most once.
func (r *hoursSummaryRepository) MarkResultSent(ctx context.Context, id uint) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.HoursSummary{}).
		Where("id = ? AND result_sent_at IS NULL", id).
		Updates(map[string]interface{}{"result_sent_at": now, "updated_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *hoursSummaryRepository) ListByDoctor(ctx context.Context, doctorUserID uint) ([]models.HoursSummary, error) {
	var summaries []models.HoursSummary
	if err := r.db.WithContext(ctx).
		Where("doctor_user_id = ?", doctorUserID).
		Order("student_user_id ASC").
		Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
