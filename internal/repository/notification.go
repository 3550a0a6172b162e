package repository

import (
	"context"

	"stackit/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository stores per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, recipientID, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
}

type notificationRepository struct {
	base
}

// NewNotificationRepository returns the GORM implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{base: newBase(db, nil, "notifications")}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) (err error) {
	ctx, end := r.op(ctx, "Create")
	defer func() { end(err) }()

	n.Read = false
	if err = r.db.WithContext(ctx).Omit("Sender").Create(n).Error; err != nil {
		return translate(err, "Notification", n.RecipientID)
	}
	n.Stamp()
	r.log.LogWrite(ctx, "Create", "notification_id", n.ID, "recipient_id", n.RecipientID, "type", string(n.Type))
	return nil
}

// List returns newest first.
func (r *notificationRepository) List(ctx context.Context, recipientID uint, limit, offset int) (_ []models.Notification, err error) {
	ctx, end := r.op(ctx, "List")
	defer func() { end(err) }()

	items := []models.Notification{}
	err = r.db.WithContext(ctx).
		Preload("Sender", authorColumns).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, translate(err, "Notification", recipientID)
	}
	return items, nil
}

// MarkRead sets read=true on a notification owned by recipientID. Marking an
// already-read notification succeeds without a write.
func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id uint) (_ *models.Notification, err error) {
	ctx, end := r.op(ctx, "MarkRead")
	defer func() { end(err) }()

	var n models.Notification
	if err = r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error; err != nil {
		return nil, translate(err, "Notification", id)
	}
	if n.Read {
		return &n, nil
	}
	if err = r.db.WithContext(ctx).Model(&n).UpdateColumn("read", true).Error; err != nil {
		return nil, translate(err, "Notification", id)
	}
	n.Read = true
	r.log.LogWrite(ctx, "MarkRead", "notification_id", id)
	return &n, nil
}

// MarkAllRead returns the number of notifications that flipped.
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (_ int64, err error) {
	ctx, end := r.op(ctx, "MarkAllRead")
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		UpdateColumn("read", true)
	if res.Error != nil {
		return 0, translate(res.Error, "Notification", recipientID)
	}
	r.log.LogWrite(ctx, "MarkAllRead", "recipient_id", recipientID, "updated", res.RowsAffected)
	return res.RowsAffected, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uint) (count int64, err error) {
	ctx, end := r.op(ctx, "CountUnread")
	defer func() { end(err) }()

	err = r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "Notification", recipientID)
	}
	return count, nil
}
