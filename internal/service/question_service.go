package service

import (
	"context"
	"strings"

	"stackit/internal/models"
	"stackit/internal/repository"
)

// QuestionService serves question listings and detail pages and lets
// admins moderate question status.
type QuestionService struct {
	content repository.ContentRepository
}

func NewQuestionService(content repository.ContentRepository) *QuestionService {
	return &QuestionService{content: content}
}

type ListQuestionsInput struct {
	Tag        string
	Search     string
	AuthorID   uint
	Status     string
	Unanswered bool
	Sort       string
	Limit      int
	Offset     int
}

// QuestionPage is one page of a listing plus the unpaged total.
type QuestionPage struct {
	Questions []models.Question `json:"questions"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// QuestionDetail is a question with its ranked answers.
type QuestionDetail struct {
	Question *models.Question `json:"question"`
	Answers  []models.Answer  `json:"answers"`
}

// canSeeHidden reports whether viewer may see pending and rejected
// questions written by authorID.
func canSeeHidden(viewer *models.User, authorID uint) bool {
	return viewer.IsAdmin() || (viewer != nil && authorID != 0 && viewer.ID == authorID)
}

// ListQuestions hides pending and rejected questions from everyone except
// admins and the author listing their own questions.
func (s *QuestionService) ListQuestions(ctx context.Context, in ListQuestionsInput, viewer *models.User) (*QuestionPage, error) {
	filter := repository.QuestionFilter{
		TagSlug:    strings.TrimSpace(in.Tag),
		Search:     in.Search,
		AuthorID:   in.AuthorID,
		Unanswered: in.Unanswered,
	}

	if raw := strings.ToLower(strings.TrimSpace(in.Status)); raw != "" {
		status := models.QuestionStatus(raw)
		if !status.Valid() {
			return nil, models.NewValidationError("Unknown status: " + raw)
		}
		if !status.Public() && !canSeeHidden(viewer, in.AuthorID) {
			return nil, models.NewPermissionError("Only admins can list " + raw + " questions")
		}
		filter.Statuses = []models.QuestionStatus{status}
	} else if !canSeeHidden(viewer, in.AuthorID) {
		filter.Statuses = []models.QuestionStatus{models.QuestionOpen, models.QuestionAccepted}
	}

	questions, total, err := s.content.ListQuestions(ctx, filter, repository.ParseQuestionSort(in.Sort), in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	return &QuestionPage{Questions: questions, Total: total, Limit: in.Limit, Offset: in.Offset}, nil
}

// GetQuestionDetail resolves slug or id, counts the view and loads answers.
// Hidden questions are reported as missing to viewers who cannot see them.
func (s *QuestionService) GetQuestionDetail(ctx context.Context, ref string, viewer *models.User) (*QuestionDetail, error) {
	q, err := s.content.FetchQuestion(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !q.Status.Public() && !canSeeHidden(viewer, q.UserID) {
		return nil, models.NewNotFoundError("Question", ref)
	}

	views, err := s.content.IncrementViews(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.ViewsCount = views

	answers, err := s.content.ListAnswers(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	return &QuestionDetail{Question: q, Answers: answers}, nil
}

// Moderate sets a question to open, pending or rejected. Reopening a
// question that has an accepted answer restores the accepted state.
func (s *QuestionService) Moderate(ctx context.Context, questionID uint, rawStatus string, admin *models.User) (*models.Question, error) {
	if !admin.IsAdmin() {
		return nil, models.NewPermissionError("Admin access required")
	}
	status := models.QuestionStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	switch status {
	case models.QuestionOpen, models.QuestionPending, models.QuestionRejected:
	default:
		return nil, models.NewValidationError("Status must be open, pending or rejected")
	}

	q, err := s.content.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if status == models.QuestionOpen && q.AcceptedAnswerID != nil {
		status = models.QuestionAccepted
	}
	return s.content.SetQuestionStatus(ctx, questionID, status)
}
