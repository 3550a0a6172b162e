package service

import (
	"context"
	"strings"

	"stackit/internal/models"
	"stackit/internal/repository"
)

type TagService struct {
	tags repository.TagRepository
}

func NewTagService(tags repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

func (s *TagService) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.tags.List(ctx)
}

type CreateTagInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateTag is admin only.
func (s *TagService) CreateTag(ctx context.Context, in CreateTagInput, admin *models.User) (*models.Tag, error) {
	if !admin.IsAdmin() {
		return nil, models.NewPermissionError("Admin access required")
	}
	tag := &models.Tag{Name: in.Name, Description: strings.TrimSpace(in.Description)}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// LoadCatalog upserts tags and reports how many were new.
func (s *TagService) LoadCatalog(ctx context.Context, catalog []CreateTagInput) (int, error) {
	created := 0
	for _, in := range catalog {
		isNew, err := s.tags.Upsert(ctx, &models.Tag{Name: in.Name, Description: strings.TrimSpace(in.Description)})
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
