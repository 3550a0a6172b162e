package repository

import (
	"context"
	"strings"
	"unicode/utf8"

	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/slug"

	"gorm.io/gorm"
)

// TagRepository reads and creates tags.
type TagRepository interface {
	List(ctx context.Context) ([]models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) error
	Upsert(ctx context.Context, tag *models.Tag) (created bool, err error)
}

type tagRepository struct {
	base
}

// NewTagRepository returns the GORM implementation.
func NewTagRepository(db *gorm.DB, store *cache.Store) TagRepository {
	return &tagRepository{base: newBase(db, store, "tags")}
}

// List returns every tag ordered by name. The full list is cached.
func (r *tagRepository) List(ctx context.Context) (_ []models.Tag, err error) {
	ctx, end := r.op(ctx, "List")
	defer func() { end(err) }()

	tags := []models.Tag{}
	err = r.store.Aside(ctx, cache.TagListKey, &tags, cache.TagListTTL, func() error {
		return r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	})
	if err != nil {
		return nil, translate(err, "Tag", "list")
	}
	return tags, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, s string) (_ *models.Tag, err error) {
	ctx, end := r.op(ctx, "GetBySlug")
	defer func() { end(err) }()

	var tag models.Tag
	if err = r.db.WithContext(ctx).Where("slug = ?", strings.ToLower(s)).First(&tag).Error; err != nil {
		return nil, translate(err, "Tag", s)
	}
	return &tag, nil
}

// Create inserts a new tag. A tag whose slug already exists is a conflict.
func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) (err error) {
	ctx, end := r.op(ctx, "Create")
	defer func() { end(err) }()

	if err = prepareTag(tag); err != nil {
		return err
	}
	if err = r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return translate(err, "Tag", tag.Slug)
	}
	r.store.Invalidate(ctx, cache.TagListKey)
	r.log.LogWrite(ctx, "Create", "tag", tag.Slug)
	return nil
}

// Upsert creates the tag or refreshes the description of an existing one.
func (r *tagRepository) Upsert(ctx context.Context, tag *models.Tag) (created bool, err error) {
	ctx, end := r.op(ctx, "Upsert")
	defer func() { end(err) }()

	if err = prepareTag(tag); err != nil {
		return false, err
	}
	description := tag.Description
	res := r.db.WithContext(ctx).
		Where(models.Tag{Slug: tag.Slug}).
		Attrs(models.Tag{Name: tag.Name, Description: description}).
		FirstOrCreate(tag)
	if res.Error != nil {
		return false, translate(res.Error, "Tag", tag.Slug)
	}
	created = res.RowsAffected > 0
	if !created && description != "" && tag.Description != description {
		if err = r.db.WithContext(ctx).Model(tag).Update("description", description).Error; err != nil {
			return false, translate(err, "Tag", tag.Slug)
		}
	}
	r.store.Invalidate(ctx, cache.TagListKey)
	return created, nil
}

func prepareTag(tag *models.Tag) error {
	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" || utf8.RuneCountInString(tag.Name) > 50 {
		return models.NewValidationError("Tag name must be 1-50 characters")
	}
	tag.Slug = slug.Tag(tag.Name)
	if tag.Slug == "" {
		return models.NewValidationError("Tag name must contain letters or digits")
	}
	if len(tag.Description) > 500 {
		return models.NewValidationError("Tag description must not exceed 500 characters")
	}
	return nil
}
