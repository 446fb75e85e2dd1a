package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// ActivityRepository exposes read access to volunteer activities.
type ActivityRepository interface {
	GetByID(ctx context.Context, id uint) (models.VolunteerActivity, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs a repository backed by GORM.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.VolunteerActivity, error) {
	var activity models.VolunteerActivity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.VolunteerActivity{}, err
	}
	return activity, nil
}
