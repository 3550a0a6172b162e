package models

import (
	"time"
)

// QuestionStatus is the moderation state of a question.
type QuestionStatus string

const (
	QuestionOpen     QuestionStatus = "open"
	QuestionAccepted QuestionStatus = "accepted"
	QuestionRejected QuestionStatus = "rejected"
	QuestionPending  QuestionStatus = "pending"
)

// Valid reports whether s is a known status.
func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionOpen, QuestionAccepted, QuestionRejected, QuestionPending:
		return true
	}
	return false
}

// Public reports whether questions in this state are listed for everyone.
func (s QuestionStatus) Public() bool {
	return s == QuestionOpen || s == QuestionAccepted
}

// Tag labels questions. Names are unique case-insensitively through Slug.
type Tag struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:50;not null" json:"name"`
	Slug          string    `gorm:"size:60;uniqueIndex;not null" json:"slug"`
	Description   string    `gorm:"size:500" json:"description,omitempty"`
	QuestionCount int       `gorm:"not null;default:0" json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Question is the root of a discussion thread.
type Question struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"size:200;not null" json:"title"`
	Slug             string         `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	Tags             []Tag          `gorm:"many2many:question_tags;" json:"tags"`
	VoteCount        int            `gorm:"not null;default:0" json:"vote_count"`
	AnswerCount      int            `gorm:"not null;default:0" json:"answer_count"`
	ViewsCount       int            `gorm:"not null;default:0" json:"views_count"`
	Status           QuestionStatus `gorm:"size:16;not null;default:open;index" json:"status"`
	AcceptedAnswerID *uint          `json:"accepted_answer_id,omitempty"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	User             User           `gorm:"foreignKey:UserID" json:"author"`
	Answers          []Answer       `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Answer belongs to exactly one question. At most one answer per question
// has Accepted set.
type Answer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	VoteCount  int       `gorm:"not null;default:0" json:"vote_count"`
	Accepted   bool      `gorm:"not null;default:false" json:"accepted"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"author"`
	Comments   []Comment `gorm:"foreignKey:AnswerID" json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Comment is a short plain-text remark on an answer.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AnswerID  uint      `gorm:"not null;index" json:"answer_id"`
	Content   string    `gorm:"size:1000;not null" json:"content"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"author"`
	CreatedAt time.Time `json:"created_at"`
}
