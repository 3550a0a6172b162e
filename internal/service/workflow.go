// Package service holds the business rules between HTTP handlers and storage.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"
	"stackit/internal/slug"
	"stackit/internal/validation"
)

const (
	maxTitleLen   = 200
	maxTags       = 5
	maxTagLen     = 50
	maxBodyLen    = 50000
	maxCommentLen = 1000
)

// NotificationCenter is the part of notifications.Center the workflow uses.
type NotificationCenter interface {
	Add(ctx context.Context, in notifications.NewNotification) (*models.Notification, error)
	MarkAsRead(ctx context.Context, recipientID, id uint) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error)
}

// QuestionInput is the payload of SubmitQuestion.
type QuestionInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Workflow validates content mutations against entity state and the caller,
// writes through the content repository and raises notifications. A nil
// caller is an anonymous request. Collaborator errors are returned as is.
type Workflow struct {
	content    repository.ContentRepository
	notes      NotificationCenter
	moderation func(userID uint) bool
}

// NewWorkflow wires the engine. moderation reports whether new questions from
// a user start out pending; nil means never.
func NewWorkflow(content repository.ContentRepository, notes NotificationCenter, moderation func(userID uint) bool) *Workflow {
	if moderation == nil {
		moderation = func(uint) bool { return false }
	}
	return &Workflow{content: content, notes: notes, moderation: moderation}
}

func (w *Workflow) SubmitQuestion(ctx context.Context, in QuestionInput, author *models.User) (*models.Question, error) {
	if author == nil {
		return nil, models.NewPermissionError("Log in to ask a question")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	if err := checkRichText(in.Description, "Description"); err != nil {
		return nil, err
	}
	tags, err := NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	status := models.QuestionOpen
	if w.moderation(author.ID) {
		status = models.QuestionPending
	}

	q := &models.Question{
		Title:       title,
		Slug:        slug.Unique(title),
		Description: in.Description,
		Status:      status,
		UserID:      author.ID,
	}
	if err := w.content.CreateQuestion(ctx, q, tags); err != nil {
		return nil, err
	}
	return w.content.GetQuestion(ctx, q.ID)
}

// NormalizeTags trims and de-duplicates tag names case-insensitively,
// keeping the first spelling. Names that differ only in symbols, such as
// "C" and "C#", stay distinct. More than five raw entries is an error even
// when duplicates would collapse them.
func NormalizeTags(raw []string) ([]string, error) {
	if len(raw) > maxTags {
		return nil, models.NewValidationError(fmt.Sprintf("At most %d tags are allowed", maxTags))
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if utf8.RuneCountInString(name) > maxTagLen {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q is too long (max %d characters)", name, maxTagLen))
		}
		if slug.Tag(name) == "" {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q must contain letters or digits", name))
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, models.NewValidationError("At least one tag is required")
	}
	return out, nil
}

// SubmitAnswer answers the question identified by slug or id. The question
// author is notified unless they answered themselves.
func (w *Workflow) SubmitAnswer(ctx context.Context, questionRef, content string, author *models.User) (*models.Answer, error) {
	if author == nil {
		return nil, models.NewPermissionError("Log in to answer")
	}
	if err := checkRichText(content, "Answer"); err != nil {
		return nil, err
	}

	q, err := w.content.FetchQuestion(ctx, questionRef)
	if err != nil {
		return nil, err
	}
	if !q.Status.Public() {
		if !canSeeHidden(author, q.UserID) {
			return nil, models.NewNotFoundError("Question", questionRef)
		}
		return nil, models.NewValidationError("Question is not open for answers")
	}

	a := &models.Answer{QuestionID: q.ID, Content: content, UserID: author.ID}
	if err := w.content.CreateAnswer(ctx, a); err != nil {
		return nil, err
	}

	if author.ID != q.UserID {
		if err := w.notify(ctx, q.UserID, author, models.NotificationAnswer,
			fmt.Sprintf("%s answered your question: '%s'", author.Username, q.Title),
			&q.ID, &a.ID, nil); err != nil {
			return nil, err
		}
	}
	return w.content.GetAnswer(ctx, a.ID)
}

func (w *Workflow) VoteQuestion(ctx context.Context, questionID uint, direction models.VoteDirection, voter *models.User) (*models.Question, error) {
	delta, err := voteDelta(direction, voter)
	if err != nil {
		return nil, err
	}
	if _, err := w.visibleQuestion(ctx, questionID, voter); err != nil {
		return nil, err
	}
	if _, err := w.content.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityQuestion, ID: questionID}, delta); err != nil {
		return nil, err
	}
	return w.content.GetQuestion(ctx, questionID)
}

func (w *Workflow) VoteAnswer(ctx context.Context, answerID uint, direction models.VoteDirection, voter *models.User) (*models.Answer, error) {
	delta, err := voteDelta(direction, voter)
	if err != nil {
		return nil, err
	}
	if _, _, err := w.visibleAnswer(ctx, answerID, voter); err != nil {
		return nil, err
	}
	if _, err := w.content.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityAnswer, ID: answerID}, delta); err != nil {
		return nil, err
	}
	return w.content.GetAnswer(ctx, answerID)
}

// voteDelta turns a direction into +1/-1. The counter itself is clamped at
// zero by the repository; repeated votes by one user are not de-duplicated.
func voteDelta(direction models.VoteDirection, voter *models.User) (int, error) {
	if voter == nil {
		return 0, models.NewPermissionError("Log in to vote")
	}
	delta, ok := direction.Delta()
	if !ok {
		return 0, models.NewValidationError("Vote direction must be 'up' or 'down'")
	}
	return delta, nil
}

// visibleQuestion loads a question the caller may act on. Pending and
// rejected questions read as missing to everyone but the author and admins.
func (w *Workflow) visibleQuestion(ctx context.Context, questionID uint, caller *models.User) (*models.Question, error) {
	q, err := w.content.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.Status.Public() && !canSeeHidden(caller, q.UserID) {
		return nil, models.NewNotFoundError("Question", questionID)
	}
	return q, nil
}

// visibleAnswer loads an answer and its question under the same rule.
func (w *Workflow) visibleAnswer(ctx context.Context, answerID uint, caller *models.User) (*models.Answer, *models.Question, error) {
	answer, err := w.content.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, nil, err
	}
	q, err := w.content.GetQuestion(ctx, answer.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	if !q.Status.Public() && !canSeeHidden(caller, q.UserID) {
		return nil, nil, models.NewNotFoundError("Answer", answerID)
	}
	return answer, q, nil
}

// ToggleAccept accepts the answer, or un-accepts it if it already is. Only
// the question author may call it. The flip is decided by the repository
// under a lock, and only a flip to accepted notifies the answer author.
func (w *Workflow) ToggleAccept(ctx context.Context, answerID uint, requester *models.User) (*models.Answer, error) {
	if requester == nil {
		return nil, models.NewPermissionError("Log in to accept answers")
	}
	answer, q, err := w.visibleAnswer(ctx, answerID, requester)
	if err != nil {
		return nil, err
	}
	if q.UserID != requester.ID {
		return nil, models.NewPermissionError("Only the question author can accept answers")
	}

	updated, accepted, err := w.content.ToggleAccepted(ctx, answerID)
	if err != nil {
		return nil, err
	}

	if accepted && answer.UserID != requester.ID {
		if err := w.notify(ctx, answer.UserID, requester, models.NotificationAccept,
			fmt.Sprintf("%s accepted your answer to '%s'", requester.Username, q.Title),
			&q.ID, &answer.ID, nil); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// AddComment posts a plain-text comment. The answer author and every
// @mentioned user other than the commenter are notified.
func (w *Workflow) AddComment(ctx context.Context, answerID uint, content string, author *models.User) (*models.Comment, error) {
	if author == nil {
		return nil, models.NewPermissionError("Log in to comment")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Comment is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	answer, q, err := w.visibleAnswer(ctx, answerID, author)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{AnswerID: answerID, Content: content, UserID: author.ID}
	if err := w.content.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	c.User = *author

	if answer.UserID != author.ID {
		if err := w.notify(ctx, answer.UserID, author, models.NotificationComment,
			fmt.Sprintf("%s commented on your answer to '%s'", author.Username, q.Title),
			&q.ID, &answer.ID, &c.ID); err != nil {
			return nil, err
		}
	}

	mentioned, err := w.content.GetUsersByUsernames(ctx, validation.Mentions(content))
	if err != nil {
		return nil, err
	}
	notified := map[uint]bool{author.ID: true}
	for _, u := range mentioned {
		if notified[u.ID] {
			continue
		}
		notified[u.ID] = true
		if err := w.notify(ctx, u.ID, author, models.NotificationMention,
			fmt.Sprintf("%s mentioned you in a comment on '%s'", author.Username, q.Title),
			&q.ID, &answer.ID, &c.ID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MarkRead marks one of the caller's notifications read.
func (w *Workflow) MarkRead(ctx context.Context, notificationID uint, caller *models.User) (*models.Notification, error) {
	if caller == nil {
		return nil, models.NewPermissionError("Log in to manage notifications")
	}
	return w.notes.MarkAsRead(ctx, caller.ID, notificationID)
}

// MarkAllRead marks every notification of the caller read.
func (w *Workflow) MarkAllRead(ctx context.Context, caller *models.User) (int64, error) {
	if caller == nil {
		return 0, models.NewPermissionError("Log in to manage notifications")
	}
	return w.notes.MarkAllAsRead(ctx, caller.ID)
}

func (w *Workflow) notify(ctx context.Context, recipientID uint, sender *models.User, typ models.NotificationType, msg string, questionID, answerID, commentID *uint) error {
	_, err := w.notes.Add(ctx, notifications.NewNotification{
		RecipientID: recipientID,
		SenderID:    &sender.ID,
		Type:        typ,
		Message:     msg,
		QuestionID:  questionID,
		AnswerID:    answerID,
		CommentID:   commentID,
	})
	return err
}

// checkRichText requires visible text in an HTML body and bounds its size.
func checkRichText(body, field string) error {
	if len(body) > maxBodyLen {
		return models.NewValidationError(fmt.Sprintf("%s too long (max %d characters)", field, maxBodyLen))
	}
	if validation.PlainText(body) == "" {
		return models.NewValidationError(field + " is required")
	}
	return nil
}
