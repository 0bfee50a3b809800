package repositories

import (
	"context"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotificationByID(ctx context.Context, id string) (*models.Notification, error)
	// ListByRecipient pages through a user's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID string, after *models.Notification, fetchLimit int) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkAsRead(ctx context.Context, notificationID, recipientID string) error
	MarkAllAsRead(ctx context.Context, recipientID string) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *postgresNotificationRepository) GetNotificationByID(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, after *models.Notification, fetchLimit int) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var notifications []models.Notification
	if err := q.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead flips is_read for one notification, scoped to the recipient so
// a user cannot touch someone else's rows.
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID, recipientID string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error
}
