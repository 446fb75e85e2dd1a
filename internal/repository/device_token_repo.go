package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// DeviceTokenRepository handles persistence for push delivery endpoints.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	ListByUser(ctx context.Context, userID uint) ([]models.DeviceToken, error)
	DeleteByToken(ctx context.Context, token string) error
}

type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository constructs a repository backed by GORM.
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert inserts the endpoint or, when the (user_id, token) pair already
// exists, refreshes only the platform and updated_at columns.
func (r *deviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"platform", "updated_at"}),
		}).
		Create(token).Error
}

func (r *deviceTokenRepository) ListByUser(ctx context.Context, userID uint) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteByToken drops an endpoint regardless of owner. Used when the push
// transport reports a token as permanently unregistered.
func (r *deviceTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.DeviceToken{}).Error
}
