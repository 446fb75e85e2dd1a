package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// NotificationRepository handles persistence for notification records.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetForReceiver(ctx context.Context, id, receiverID uint) (models.Notification, error)
	ListByReceiver(ctx context.Context, receiverID uint, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, receiverID uint) (int64, error)
	MarkRead(ctx context.Context, id, receiverID uint) (models.Notification, error)
	MarkActed(ctx context.Context, id uint, action string) (bool, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) GetForReceiver(ctx context.Context, id, receiverID uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", id, receiverID).
		First(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

func (r *notificationRepository) ListByReceiver(ctx context.Context, receiverID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, receiverID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ? AND status = ?", receiverID, models.NotificationStatusUnread).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, receiverID uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", id, receiverID).
		First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Status != models.NotificationStatusUnread {
		return notification, nil
	}

	now := time.Now()
	notification.Status = models.NotificationStatusRead
	notification.ReadAt = &now
	if err := r.db.WithContext(ctx).Save(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

// MarkActed flips the notification to acted only while it is still unread
// or read. It reports whether a row was updated; false means another caller
// already acted on it.
func (r *notificationRepository) MarkActed(ctx context.Context, id uint, action string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status IN ?", id, []string{models.NotificationStatusUnread, models.NotificationStatusRead}).
		Updates(map[string]interface{}{
			"status":   models.NotificationStatusActed,
			"action":   action,
			"acted_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
