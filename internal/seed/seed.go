// Package seed loads the tag catalog and generates demo data for development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"stackit/internal/cache"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"
	"stackit/internal/service"

	"gorm.io/gorm"
)

// Options controls the amount and shape of demo data.
type Options struct {
	Users      int
	Questions  int
	MaxAnswers int
	MaxDays    int
	Clean      bool
	// FastHash hashes the demo password at bcrypt.MinCost.
	FastHash bool
	// Seed makes runs reproducible; zero is random.
	Seed int64
}

// Report counts what a run created.
type Report struct {
	NewTags   int
	Users     int
	Questions int
	Answers   int
	Comments  int
	Votes     int
	Accepted  int
}

// Seeder writes demo content through the workflow so that counters,
// accepted answers and notifications stay consistent.
type Seeder struct {
	db       *gorm.DB
	factory  *Factory
	tags     *service.TagService
	workflow *service.Workflow
	opts     Options
}

// NewSeeder builds a Seeder without caching; run it against a quiesced API
// or flush Redis afterwards.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	store := cache.NewStore(nil)
	content := repository.NewContentRepository(db, store)
	center := notifications.NewCenter(repository.NewNotificationRepository(db), store)
	return &Seeder{
		db:       db,
		factory:  NewFactory(db, opts),
		tags:     service.NewTagService(repository.NewTagRepository(db, store)),
		workflow: service.NewWorkflow(content, center, nil),
		opts:     opts,
	}
}

// ClearAll deletes all content and users. Tags are kept.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			"DELETE FROM notifications",
			"DELETE FROM comments",
			"UPDATE questions SET accepted_answer_id = NULL",
			"DELETE FROM answers",
			"DELETE FROM question_tags",
			"DELETE FROM questions",
			"UPDATE tags SET question_count = 0",
			"DELETE FROM users",
		}
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
}

// Run loads the tag catalog, then creates users and a question thread per
// question with answers, votes, comments and sometimes an accepted answer.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	catalog, err := Catalog()
	if err != nil {
		return nil, err
	}
	if report.NewTags, err = s.tags.LoadCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("load tag catalog: %w", err)
	}
	pool := make([]string, len(catalog))
	for i, t := range catalog {
		pool[i] = t.Name
	}

	if s.opts.Users <= 0 {
		if s.opts.Questions > 0 {
			return nil, errors.New("seeding questions needs at least one user")
		}
		return report, nil
	}
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	report.Users = len(users)
	middleware.Logger.InfoContext(ctx, "seeded users", "count", report.Users)

	for i := 0; i < s.opts.Questions; i++ {
		if err := s.thread(ctx, users, pool, report); err != nil {
			return nil, err
		}
	}
	middleware.Logger.InfoContext(ctx, "seeding complete",
		"new_tags", report.NewTags, "users", report.Users, "questions", report.Questions,
		"answers", report.Answers, "comments", report.Comments, "votes", report.Votes,
		"accepted", report.Accepted)
	return report, nil
}

func (s *Seeder) thread(ctx context.Context, users []*models.User, pool []string, report *Report) error {
	f := s.factory
	author := users[f.Pick(len(users))]

	q, err := s.workflow.SubmitQuestion(ctx, f.QuestionInput(pool), author)
	if err != nil {
		return fmt.Errorf("submit question: %w", err)
	}
	askedAt := f.CreatedAt(time.Time{})
	if err := f.Backdate(ctx, &models.Question{}, q.ID, askedAt); err != nil {
		return err
	}
	report.Questions++
	report.Votes += s.votes(ctx, models.EntityQuestion, q.ID, users)

	maxAnswers := s.opts.MaxAnswers
	if maxAnswers <= 0 {
		maxAnswers = 3
	}
	var answers []*models.Answer
	for n := f.faker.Number(0, maxAnswers); n > 0; n-- {
		answerer := users[f.Pick(len(users))]
		a, err := s.workflow.SubmitAnswer(ctx, strconv.FormatUint(uint64(q.ID), 10), f.AnswerBody(), answerer)
		if err != nil {
			return fmt.Errorf("submit answer: %w", err)
		}
		if err := f.Backdate(ctx, &models.Answer{}, a.ID, f.CreatedAt(askedAt)); err != nil {
			return err
		}
		answers = append(answers, a)
		report.Answers++
		report.Votes += s.votes(ctx, models.EntityAnswer, a.ID, users)

		if f.Chance(40) {
			mention := ""
			if f.Chance(50) {
				mention = users[f.Pick(len(users))].Username
			}
			commenter := users[f.Pick(len(users))]
			if _, err := s.workflow.AddComment(ctx, a.ID, f.CommentBody(mention), commenter); err != nil {
				return fmt.Errorf("add comment: %w", err)
			}
			report.Comments++
		}
	}

	if len(answers) > 0 && f.Chance(40) {
		if _, err := s.workflow.ToggleAccept(ctx, answers[f.Pick(len(answers))].ID, author); err != nil {
			return fmt.Errorf("accept answer: %w", err)
		}
		report.Accepted++
	}
	return nil
}

// votes casts a random number of mostly positive votes and returns how many.
func (s *Seeder) votes(ctx context.Context, kind models.EntityKind, id uint, users []*models.User) int {
	f := s.factory
	cast := 0
	for n := f.faker.Number(0, len(users)); n > 0; n-- {
		dir := models.VoteUp
		if f.Chance(25) {
			dir = models.VoteDown
		}
		voter := users[f.Pick(len(users))]
		var err error
		if kind == models.EntityQuestion {
			_, err = s.workflow.VoteQuestion(ctx, id, dir, voter)
		} else {
			_, err = s.workflow.VoteAnswer(ctx, id, dir, voter)
		}
		if err != nil {
			middleware.Logger.WarnContext(ctx, "seed vote failed", "kind", kind, "id", id, "error", err)
			continue
		}
		cast++
	}
	return cast
}
