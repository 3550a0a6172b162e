package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/observability"
	"stackit/internal/slug"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestionSort orders question listings.
type QuestionSort string

const (
	SortNewest  QuestionSort = "newest"
	SortVotes   QuestionSort = "votes"
	SortAnswers QuestionSort = "answers"
	SortViews   QuestionSort = "views"
)

// ParseQuestionSort maps a query parameter onto a sort, defaulting to newest.
func ParseQuestionSort(raw string) QuestionSort {
	switch s := QuestionSort(strings.ToLower(strings.TrimSpace(raw))); s {
	case SortVotes, SortAnswers, SortViews:
		return s
	default:
		return SortNewest
	}
}

// QuestionFilter narrows ListQuestions. Zero values mean "no constraint".
type QuestionFilter struct {
	TagSlug    string
	Search     string
	AuthorID   uint
	Statuses   []models.QuestionStatus
	Unanswered bool
}

// ContentRepository persists questions, answers, comments and their counters.
type ContentRepository interface {
	CreateQuestion(ctx context.Context, q *models.Question, tagNames []string) error
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	FetchQuestion(ctx context.Context, slugOrID string) (*models.Question, error)
	ListQuestions(ctx context.Context, filter QuestionFilter, sort QuestionSort, limit, offset int) ([]models.Question, int64, error)
	IncrementViews(ctx context.Context, id uint) (int, error)
	SetQuestionStatus(ctx context.Context, id uint, status models.QuestionStatus) (*models.Question, error)

	CreateAnswer(ctx context.Context, a *models.Answer) error
	GetAnswer(ctx context.Context, id uint) (*models.Answer, error)
	ListAnswers(ctx context.Context, questionID uint) ([]models.Answer, error)
	ToggleAccepted(ctx context.Context, answerID uint) (*models.Answer, bool, error)

	CreateComment(ctx context.Context, c *models.Comment) error

	UpdateVoteCount(ctx context.Context, ref models.EntityRef, delta int) (int, error)
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
}

type contentRepository struct {
	base
}

// NewContentRepository returns the GORM implementation. store may wrap a nil client.
func NewContentRepository(db *gorm.DB, store *cache.Store) ContentRepository {
	return &contentRepository{base: newBase(db, store, "questions")}
}

func (r *contentRepository) CreateQuestion(ctx context.Context, q *models.Question, tagNames []string) (err error) {
	ctx, end := r.op(ctx, "CreateQuestion")
	defer func() { end(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		q.Tags = tags
		if err := tx.Omit("User", "Answers").Create(q).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		ids := make([]uint, len(tags))
		for i := range tags {
			ids[i] = tags[i].ID
		}
		return tx.Model(&models.Tag{}).Where("id IN ?", ids).
			UpdateColumn("question_count", gorm.Expr("question_count + 1")).Error
	})
	if err != nil {
		return translate(err, "Question", q.Slug)
	}

	r.store.Invalidate(ctx, cache.TagListKey)
	observability.ContentCreatedTotal.WithLabelValues("question").Inc()
	r.log.LogWrite(ctx, "CreateQuestion", "question_id", q.ID, "tags", len(q.Tags))
	return nil
}

// ensureTags resolves names to tag rows, matching case-insensitively on the
// name and creating missing ones. A new name whose slug is already taken by
// a differently named tag is a validation error rather than a merge.
func ensureTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		s := slug.Tag(name)
		if s == "" {
			return nil, models.NewValidationError("Tag name must contain letters or digits")
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		var found []models.Tag
		if err := tx.Where("LOWER(name) = ?", key).Limit(1).Find(&found).Error; err != nil {
			return nil, err
		}
		if len(found) == 1 {
			tags = append(tags, found[0])
			continue
		}

		var taken []models.Tag
		if err := tx.Where("slug = ?", s).Limit(1).Find(&taken).Error; err != nil {
			return nil, err
		}
		if len(taken) == 1 {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q clashes with existing tag %q", name, taken[0].Name))
		}
		tag := models.Tag{Name: name, Slug: s}
		if err := tx.Create(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (r *contentRepository) GetQuestion(ctx context.Context, id uint) (_ *models.Question, err error) {
	ctx, end := r.op(ctx, "GetQuestion")
	defer func() { end(err) }()

	var q models.Question
	err = r.store.Aside(ctx, cache.QuestionKey(id), &q, cache.QuestionTTL, func() error {
		return r.db.WithContext(ctx).
			Preload("Tags").
			Preload("User", authorColumns).
			First(&q, id).Error
	})
	if err != nil {
		return nil, translate(err, "Question", id)
	}
	return &q, nil
}

// FetchQuestion resolves a slug first, then falls back to a numeric id.
func (r *contentRepository) FetchQuestion(ctx context.Context, slugOrID string) (*models.Question, error) {
	ref := strings.TrimSpace(slugOrID)
	if ref == "" {
		return nil, models.NewValidationError("Question reference is required")
	}

	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("slug = ?", ref).Limit(1).Pluck("id", &ids).Error; err != nil {
		return nil, translate(err, "Question", ref)
	}
	if len(ids) == 1 {
		return r.GetQuestion(ctx, ids[0])
	}

	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return nil, models.NewNotFoundError("Question", ref)
	}
	return r.GetQuestion(ctx, uint(id))
}

func (r *contentRepository) ListQuestions(ctx context.Context, filter QuestionFilter, sort QuestionSort, limit, offset int) (_ []models.Question, total int64, err error) {
	ctx, end := r.op(ctx, "ListQuestions")
	defer func() { end(err) }()

	query := r.db.WithContext(ctx).Model(&models.Question{})
	if filter.TagSlug != "" {
		tagged := r.db.Table("question_tags").
			Select("question_tags.question_id").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("tags.slug = ?", strings.ToLower(filter.TagSlug))
		query = query.Where("questions.id IN (?)", tagged)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(questions.title) LIKE ? OR LOWER(questions.description) LIKE ?", like, like)
	}
	if filter.AuthorID != 0 {
		query = query.Where("questions.user_id = ?", filter.AuthorID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("questions.status IN ?", filter.Statuses)
	}
	if filter.Unanswered {
		query = query.Where("questions.answer_count = 0")
	}

	if err = query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "Question", "list")
	}

	var questions []models.Question
	err = query.Session(&gorm.Session{}).
		Preload("Tags").
		Preload("User", authorColumns).
		Order(questionOrder(sort)).
		Limit(limit).
		Offset(offset).
		Find(&questions).Error
	if err != nil {
		return nil, 0, translate(err, "Question", "list")
	}
	return questions, total, nil
}

func questionOrder(sort QuestionSort) string {
	switch sort {
	case SortVotes:
		return "questions.vote_count DESC, questions.created_at DESC, questions.id DESC"
	case SortAnswers:
		return "questions.answer_count DESC, questions.created_at DESC, questions.id DESC"
	case SortViews:
		return "questions.views_count DESC, questions.created_at DESC, questions.id DESC"
	default:
		return "questions.created_at DESC, questions.id DESC"
	}
}

// IncrementViews bumps the view counter and returns the new value. The
// cached question is left alone; callers overlay the returned count.
func (r *contentRepository) IncrementViews(ctx context.Context, id uint) (views int, err error) {
	ctx, end := r.op(ctx, "IncrementViews")
	defer func() { end(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Question{}).Where("id = ?", id).
			UpdateColumn("views_count", gorm.Expr("views_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Question", id)
		}
		return tx.Model(&models.Question{}).Where("id = ?", id).Select("views_count").Scan(&views).Error
	})
	if err != nil {
		return 0, translate(err, "Question", id)
	}
	return views, nil
}

func (r *contentRepository) SetQuestionStatus(ctx context.Context, id uint, status models.QuestionStatus) (_ *models.Question, err error) {
	ctx, end := r.op(ctx, "SetQuestionStatus")
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Model(&models.Question{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, translate(res.Error, "Question", id)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Question", id)
	}
	r.store.Invalidate(ctx, cache.QuestionKey(id))
	r.log.LogWrite(ctx, "SetQuestionStatus", "question_id", id, "status", string(status))
	return r.GetQuestion(ctx, id)
}

// CreateAnswer inserts a and bumps the parent's answer_count in one transaction.
func (r *contentRepository) CreateAnswer(ctx context.Context, a *models.Answer) (err error) {
	ctx, end := r.op(ctx, "CreateAnswer")
	defer func() { end(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Question{}).Where("id = ?", a.QuestionID).
			UpdateColumn("answer_count", gorm.Expr("answer_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Question", a.QuestionID)
		}
		a.VoteCount = 0
		a.Accepted = false
		return tx.Omit("User", "Comments").Create(a).Error
	})
	if err != nil {
		return translate(err, "Answer", a.QuestionID)
	}

	r.store.Invalidate(ctx, cache.QuestionKey(a.QuestionID))
	observability.ContentCreatedTotal.WithLabelValues("answer").Inc()
	r.log.LogWrite(ctx, "CreateAnswer", "answer_id", a.ID, "question_id", a.QuestionID)
	return nil
}

func (r *contentRepository) GetAnswer(ctx context.Context, id uint) (_ *models.Answer, err error) {
	ctx, end := r.op(ctx, "GetAnswer")
	defer func() { end(err) }()

	var a models.Answer
	if err = r.db.WithContext(ctx).Preload("User", authorColumns).First(&a, id).Error; err != nil {
		return nil, translate(err, "Answer", id)
	}
	return &a, nil
}

// ListAnswers returns the accepted answer first, then by votes, then oldest first.
func (r *contentRepository) ListAnswers(ctx context.Context, questionID uint) (_ []models.Answer, err error) {
	ctx, end := r.op(ctx, "ListAnswers")
	defer func() { end(err) }()

	var answers []models.Answer
	err = r.db.WithContext(ctx).
		Preload("User", authorColumns).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.User", authorColumns).
		Where("question_id = ?", questionID).
		Order("accepted DESC, vote_count DESC, created_at ASC, id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, translate(err, "Answer", questionID)
	}
	return answers, nil
}

// ToggleAccepted flips the accepted flag of one answer and reports the new
// value. The question row is locked for the whole read-then-write, so two
// concurrent toggles on the same thread apply one after the other.
// Accepting clears every other answer on the question; accepted_answer_id
// and the open/accepted status follow in the same transaction.
func (r *contentRepository) ToggleAccepted(ctx context.Context, answerID uint) (_ *models.Answer, accepted bool, err error) {
	ctx, end := r.op(ctx, "ToggleAccepted")
	defer func() { end(err) }()

	var answer models.Answer
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "question_id").First(&answer, answerID).Error; err != nil {
			return err
		}
		var parent models.Question
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&parent, answer.QuestionID).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "question_id", "accepted").First(&answer, answerID).Error; err != nil {
			return err
		}
		accepted = !answer.Accepted
		return applyAccepted(tx, answer.QuestionID, answerID, accepted)
	})
	if err != nil {
		return nil, false, translate(err, "Answer", answerID)
	}

	r.store.Invalidate(ctx, cache.QuestionKey(answer.QuestionID))
	r.log.LogWrite(ctx, "ToggleAccepted", "answer_id", answerID, "accepted", accepted)
	updated, err := r.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, false, err
	}
	return updated, accepted, nil
}

func applyAccepted(tx *gorm.DB, questionID, answerID uint, accepted bool) error {
	questionUpdate := map[string]any{}
	if accepted {
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ? AND accepted = ?", questionID, answerID, true).
			Update("accepted", false).Error; err != nil {
			return err
		}
		questionUpdate["accepted_answer_id"] = answerID
		questionUpdate["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			models.QuestionOpen, models.QuestionAccepted)
	} else {
		questionUpdate["accepted_answer_id"] = nil
		questionUpdate["status"] = gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
			models.QuestionAccepted, models.QuestionOpen)
	}

	if err := tx.Model(&models.Answer{}).Where("id = ?", answerID).Update("accepted", accepted).Error; err != nil {
		return err
	}
	return tx.Model(&models.Question{}).Where("id = ?", questionID).Updates(questionUpdate).Error
}

func (r *contentRepository) CreateComment(ctx context.Context, c *models.Comment) (err error) {
	ctx, end := r.op(ctx, "CreateComment")
	defer func() { end(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Answer
		if err := tx.Select("id").First(&parent, c.AnswerID).Error; err != nil {
			return translate(err, "Answer", c.AnswerID)
		}
		return tx.Omit("User").Create(c).Error
	})
	if err != nil {
		return translate(err, "Comment", c.AnswerID)
	}

	observability.ContentCreatedTotal.WithLabelValues("comment").Inc()
	r.log.LogWrite(ctx, "CreateComment", "comment_id", c.ID, "answer_id", c.AnswerID)
	return nil
}

// UpdateVoteCount applies delta to the referenced counter, clamped at zero,
// as a single UPDATE, and returns the stored value.
func (r *contentRepository) UpdateVoteCount(ctx context.Context, ref models.EntityRef, delta int) (count int, err error) {
	ctx, end := r.op(ctx, "UpdateVoteCount")
	defer func() { end(err) }()

	table, ok := ref.Table()
	if !ok {
		return 0, models.NewValidationError("Unknown vote target: " + string(ref.Kind))
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			"UPDATE "+table+" SET vote_count = CASE WHEN vote_count + ? < 0 THEN 0 ELSE vote_count + ? END, updated_at = ? WHERE id = ?",
			delta, delta, time.Now(), ref.ID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError(ref.Resource(), ref.ID)
		}
		return tx.Raw("SELECT vote_count FROM "+table+" WHERE id = ?", ref.ID).Scan(&count).Error
	})
	if err != nil {
		return 0, translate(err, ref.Resource(), ref.ID)
	}

	if ref.Kind == models.EntityQuestion {
		r.store.Invalidate(ctx, cache.QuestionKey(ref.ID))
	}
	direction := models.VoteUp
	if delta < 0 {
		direction = models.VoteDown
	}
	observability.VotesTotal.WithLabelValues(string(ref.Kind), string(direction)).Inc()
	r.log.LogWrite(ctx, "UpdateVoteCount", "target", ref.String(), "delta", delta, "vote_count", count)
	return count, nil
}

// GetUsersByUsernames matches usernames case-insensitively.
func (r *contentRepository) GetUsersByUsernames(ctx context.Context, usernames []string) (_ []models.User, err error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	ctx, end := r.op(ctx, "GetUsersByUsernames")
	defer func() { end(err) }()

	lowered := make([]string, len(usernames))
	for i, name := range usernames {
		lowered[i] = strings.ToLower(name)
	}

	var users []models.User
	if err = r.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Find(&users).Error; err != nil {
		return nil, translate(err, "User", strings.Join(usernames, ","))
	}
	return users, nil
}
