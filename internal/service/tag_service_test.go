package service

import (
	"context"
	"testing"

	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagService(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, store := testutil.NewStore(t)
	svc := NewTagService(repository.NewTagRepository(db, store))
	ctx := context.Background()
	admin := &models.User{ID: 1, Role: models.RoleAdmin}

	_, err := svc.CreateTag(ctx, CreateTagInput{Name: "go"}, &models.User{ID: 2})
	assertPermissionError(t, err)
	_, err = svc.CreateTag(ctx, CreateTagInput{Name: "go"}, nil)
	assertPermissionError(t, err)

	tag, err := svc.CreateTag(ctx, CreateTagInput{Name: " Go ", Description: " The Go language "}, admin)
	require.NoError(t, err)
	assert.Equal(t, "Go", tag.Name)
	assert.Equal(t, "go", tag.Slug)
	assert.Equal(t, "The Go language", tag.Description)

	_, err = svc.CreateTag(ctx, CreateTagInput{Name: "GO"}, admin)
	assertAppError(t, err, models.CodeConflict)

	created, err := svc.LoadCatalog(ctx, []CreateTagInput{
		{Name: "go", Description: "Updated"},
		{Name: "PostgreSQL", Description: "Relational database"},
		{Name: "redis"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.LoadCatalog(ctx, []CreateTagInput{{Name: "redis"}})
	require.NoError(t, err)
	assert.Zero(t, created, "loading twice is a no-op")

	tags, err := svc.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	bySlug := map[string]models.Tag{}
	for _, tg := range tags {
		bySlug[tg.Slug] = tg
	}
	assert.Equal(t, "Updated", bySlug["go"].Description)
	assert.Contains(t, bySlug, "postgresql")

	_, err = svc.LoadCatalog(ctx, []CreateTagInput{{Name: "***"}})
	assertValidationError(t, err)
}
