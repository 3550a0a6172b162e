package models

import (
	"time"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

// NotificationType classifies why a notification was raised.
type NotificationType string

const (
	NotificationAnswer  NotificationType = "answer"
	NotificationComment NotificationType = "comment"
	NotificationMention NotificationType = "mention"
	NotificationAccept  NotificationType = "accept"
	NotificationOther   NotificationType = "other"
)

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationAnswer, NotificationComment, NotificationMention, NotificationAccept, NotificationOther:
		return true
	}
	return false
}

// Notification is an alert for one recipient. Only Read ever changes.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	SenderID    *uint            `json:"sender_id,omitempty"`
	Sender      *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type        NotificationType `gorm:"size:16;not null" json:"type"`
	Message     string           `gorm:"size:500;not null" json:"message"`
	Read        bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read" json:"read"`
	QuestionID  *uint            `json:"question_id,omitempty"`
	AnswerID    *uint            `json:"answer_id,omitempty"`
	CommentID   *uint            `json:"comment_id,omitempty"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	TimeAgo     string           `gorm:"-" json:"time_ago"`
}

// AfterFind fills the relative timestamp shown by clients.
func (n *Notification) AfterFind(_ *gorm.DB) error {
	n.Stamp()
	return nil
}

// Stamp recomputes TimeAgo from CreatedAt.
func (n *Notification) Stamp() {
	if n.CreatedAt.IsZero() {
		n.TimeAgo = ""
		return
	}
	n.TimeAgo = humanize.Time(n.CreatedAt)
}
