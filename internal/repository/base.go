// Package repository provides the GORM-backed data access layer.
package repository

import (
	"context"
	"errors"
	"strings"

	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes that are client errors rather than faults.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// authorColumns limits preloaded authors to their public fields.
func authorColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "role", "bio", "created_at")
}

// base carries the dependencies every repository shares.
type base struct {
	db       *gorm.DB
	store    *cache.Store
	dbSystem string
	log      *observability.RepoLogger
	table    string
}

func newBase(db *gorm.DB, store *cache.Store, table string) base {
	return base{
		db:       db,
		store:    store,
		dbSystem: db.Dialector.Name(),
		log:      observability.NewRepoLogger(table, nil),
		table:    table,
	}
}

// op starts a span and a latency timer for one repository call. The returned
// func must be called with the final error.
func (b base) op(ctx context.Context, method string) (context.Context, func(error)) {
	ctx, span := observability.StartRepoSpan(ctx, b.dbSystem, b.table, method)
	done := observability.TrackQuery(method, b.table)
	return ctx, func(err error) {
		done()
		observability.EndSpan(span, err)
		var appErr *models.AppError
		if err != nil && (!errors.As(err, &appErr) || appErr.Code == models.CodeInternal) {
			b.log.LogError(ctx, method, err)
		}
	}
}

// translate maps storage errors onto the application error taxonomy.
// AppErrors pass through untouched.
func translate(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var (
		appErr *models.AppError
		pgErr  *pgconn.PgError
	)
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewConflictError(resource + " already exists")
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return models.NewConflictError(resource + " already exists")
	case errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation:
		return models.NewValidationError("Invalid " + strings.ToLower(resource))
	default:
		return models.NewInternalError(err)
	}
}
