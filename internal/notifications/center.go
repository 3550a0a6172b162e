// Package notifications keeps the per-recipient alert list and its unread count.
package notifications

import (
	"context"
	"strings"
	"unicode/utf8"

	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/observability"
	"stackit/internal/repository"
)

const maxMessageLen = 500

// NewNotification is the input to Center.Add.
type NewNotification struct {
	RecipientID uint
	SenderID    *uint
	Type        models.NotificationType
	Message     string
	QuestionID  *uint
	AnswerID    *uint
	CommentID   *uint
}

// Center adds, lists and marks notifications. Notifications are pulled by
// clients; nothing is pushed.
type Center struct {
	repo  repository.NotificationRepository
	store *cache.Store
}

// NewCenter builds a Center. store may wrap a nil client, which disables
// unread-count caching.
func NewCenter(repo repository.NotificationRepository, store *cache.Store) *Center {
	return &Center{repo: repo, store: store}
}

// Add stores an unread notification for in.RecipientID.
func (c *Center) Add(ctx context.Context, in NewNotification) (*models.Notification, error) {
	if in.RecipientID == 0 {
		return nil, models.NewValidationError("Notification recipient is required")
	}
	if in.Type == "" {
		in.Type = models.NotificationOther
	}
	if !in.Type.Valid() {
		return nil, models.NewValidationError("Unknown notification type: " + string(in.Type))
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, models.NewValidationError("Notification message is required")
	}
	if utf8.RuneCountInString(msg) > maxMessageLen {
		msg = string([]rune(msg)[:maxMessageLen-1]) + "…"
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Message:     msg,
		QuestionID:  in.QuestionID,
		AnswerID:    in.AnswerID,
		CommentID:   in.CommentID,
	}
	if err := c.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	c.store.Invalidate(ctx, cache.UnreadCountKey(in.RecipientID))
	observability.NotificationsCreatedTotal.WithLabelValues(string(in.Type)).Inc()
	return n, nil
}

// List returns the recipient's notifications, newest first.
func (c *Center) List(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	if recipientID == 0 {
		return nil, models.NewValidationError("Notification recipient is required")
	}
	return c.repo.List(ctx, recipientID, limit, offset)
}

// MarkAsRead is idempotent. A notification owned by someone else is reported
// as not found.
func (c *Center) MarkAsRead(ctx context.Context, recipientID, id uint) (*models.Notification, error) {
	n, err := c.repo.MarkRead(ctx, recipientID, id)
	if err != nil {
		return nil, err
	}
	c.store.Invalidate(ctx, cache.UnreadCountKey(recipientID))
	return n, nil
}

// MarkAllAsRead returns how many notifications flipped to read.
func (c *Center) MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error) {
	updated, err := c.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, err
	}
	c.store.Invalidate(ctx, cache.UnreadCountKey(recipientID))
	return updated, nil
}

// UnreadCount is served from cache when possible.
func (c *Center) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := c.store.Aside(ctx, cache.UnreadCountKey(recipientID), &count, cache.UnreadCountTTL, func() error {
		var err error
		count, err = c.repo.CountUnread(ctx, recipientID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
