package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stackit/internal/models"
	"stackit/internal/notifications"
	"stackit/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contentRepoStub is a stub for repository.ContentRepository. Unset
// functions fail the call so that tests notice unexpected writes.
type contentRepoStub struct {
	createQuestionFn    func(context.Context, *models.Question, []string) error
	getQuestionFn       func(context.Context, uint) (*models.Question, error)
	fetchQuestionFn     func(context.Context, string) (*models.Question, error)
	listQuestionsFn     func(context.Context, repository.QuestionFilter, repository.QuestionSort, int, int) ([]models.Question, int64, error)
	incrementViewsFn    func(context.Context, uint) (int, error)
	setQuestionStatusFn func(context.Context, uint, models.QuestionStatus) (*models.Question, error)
	createAnswerFn      func(context.Context, *models.Answer) error
	getAnswerFn         func(context.Context, uint) (*models.Answer, error)
	listAnswersFn       func(context.Context, uint) ([]models.Answer, error)
	toggleAcceptedFn    func(context.Context, uint) (*models.Answer, bool, error)
	createCommentFn     func(context.Context, *models.Comment) error
	updateVoteCountFn   func(context.Context, models.EntityRef, int) (int, error)
	getUsersFn          func(context.Context, []string) ([]models.User, error)
}

var errUnexpectedCall = errors.New("unexpected repository call")

func (s *contentRepoStub) CreateQuestion(ctx context.Context, q *models.Question, tags []string) error {
	if s.createQuestionFn == nil {
		return errUnexpectedCall
	}
	return s.createQuestionFn(ctx, q, tags)
}
func (s *contentRepoStub) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	if s.getQuestionFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getQuestionFn(ctx, id)
}
func (s *contentRepoStub) FetchQuestion(ctx context.Context, ref string) (*models.Question, error) {
	if s.fetchQuestionFn == nil {
		return nil, errUnexpectedCall
	}
	return s.fetchQuestionFn(ctx, ref)
}
func (s *contentRepoStub) ListQuestions(ctx context.Context, f repository.QuestionFilter, sort repository.QuestionSort, limit, offset int) ([]models.Question, int64, error) {
	if s.listQuestionsFn == nil {
		return nil, 0, errUnexpectedCall
	}
	return s.listQuestionsFn(ctx, f, sort, limit, offset)
}
func (s *contentRepoStub) IncrementViews(ctx context.Context, id uint) (int, error) {
	if s.incrementViewsFn == nil {
		return 0, errUnexpectedCall
	}
	return s.incrementViewsFn(ctx, id)
}
func (s *contentRepoStub) SetQuestionStatus(ctx context.Context, id uint, status models.QuestionStatus) (*models.Question, error) {
	if s.setQuestionStatusFn == nil {
		return nil, errUnexpectedCall
	}
	return s.setQuestionStatusFn(ctx, id, status)
}
func (s *contentRepoStub) CreateAnswer(ctx context.Context, a *models.Answer) error {
	if s.createAnswerFn == nil {
		return errUnexpectedCall
	}
	return s.createAnswerFn(ctx, a)
}
func (s *contentRepoStub) GetAnswer(ctx context.Context, id uint) (*models.Answer, error) {
	if s.getAnswerFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getAnswerFn(ctx, id)
}
func (s *contentRepoStub) ListAnswers(ctx context.Context, questionID uint) ([]models.Answer, error) {
	if s.listAnswersFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listAnswersFn(ctx, questionID)
}
func (s *contentRepoStub) ToggleAccepted(ctx context.Context, id uint) (*models.Answer, bool, error) {
	if s.toggleAcceptedFn == nil {
		return nil, false, errUnexpectedCall
	}
	return s.toggleAcceptedFn(ctx, id)
}
func (s *contentRepoStub) CreateComment(ctx context.Context, c *models.Comment) error {
	if s.createCommentFn == nil {
		return errUnexpectedCall
	}
	return s.createCommentFn(ctx, c)
}
func (s *contentRepoStub) UpdateVoteCount(ctx context.Context, ref models.EntityRef, delta int) (int, error) {
	if s.updateVoteCountFn == nil {
		return 0, errUnexpectedCall
	}
	return s.updateVoteCountFn(ctx, ref, delta)
}
func (s *contentRepoStub) GetUsersByUsernames(ctx context.Context, names []string) ([]models.User, error) {
	if s.getUsersFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getUsersFn(ctx, names)
}

// notesStub records notifications instead of storing them. It is safe for
// concurrent use.
type notesStub struct {
	mu     sync.Mutex
	added  []notifications.NewNotification
	addErr error
}

func (n *notesStub) Add(_ context.Context, in notifications.NewNotification) (*models.Notification, error) {
	if n.addErr != nil {
		return nil, n.addErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, in)
	return &models.Notification{ID: uint(len(n.added)), RecipientID: in.RecipientID, Type: in.Type}, nil
}
func (n *notesStub) MarkAsRead(_ context.Context, recipientID, id uint) (*models.Notification, error) {
	return &models.Notification{ID: id, RecipientID: recipientID, Read: true}, nil
}
func (n *notesStub) MarkAllAsRead(context.Context, uint) (int64, error) {
	return 0, nil
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

// assertPermissionError asserts that err is an AppError with code PERMISSION_DENIED.
func assertPermissionError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodePermission)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// runConcurrent calls fn n times in parallel and returns each call's error.
func runConcurrent(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			errs[idx] = fn(idx)
		}(i)
	}
	wg.Wait()
	return errs
}
