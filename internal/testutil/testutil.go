// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"stackit/internal/cache"
	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB returns a private in-memory database with the full schema applied.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: fmt.Sprintf("file:stackit_test_%d?mode=memory&cache=shared", dbSeq.Add(1)),
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewMockDB returns a postgres-dialect gorm DB backed by sqlmock.
func NewMockDB(t testing.TB) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         database.NewQueryLogger(logger.Warn, 0),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

// NewRedis starts a miniredis server and returns it with a connected client.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// NewStore returns a cache store backed by a fresh miniredis.
func NewStore(t testing.TB) (*miniredis.Miniredis, *cache.Store) {
	t.Helper()
	mr, rdb := NewRedis(t)
	return mr, cache.NewStore(rdb)
}

// CreateUser inserts a user with a fake email. The password column holds a
// placeholder, not a bcrypt hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	if username == "" {
		username = strings.ReplaceAll(gofakeit.Username(), ".", "_") + fmt.Sprint(dbSeq.Add(1))
	}
	user := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@" + gofakeit.DomainName(),
		Password: "not-a-hash",
		Role:     models.RoleUser,
		Bio:      gofakeit.Sentence(6),
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// CreateQuestion inserts an open question owned by author without tags.
func CreateQuestion(t testing.TB, db *gorm.DB, author *models.User) *models.Question {
	t.Helper()
	n := dbSeq.Add(1)
	q := &models.Question{
		Title:       gofakeit.Sentence(5),
		Slug:        fmt.Sprintf("question-%d", n),
		Description: "<p>" + gofakeit.Paragraph(1, 2, 8, " ") + "</p>",
		Status:      models.QuestionOpen,
		UserID:      author.ID,
	}
	require.NoError(t, db.Create(q).Error)
	return q
}

// CreateAnswer inserts an answer on q and bumps its answer count.
func CreateAnswer(t testing.TB, db *gorm.DB, q *models.Question, author *models.User) *models.Answer {
	t.Helper()
	a := &models.Answer{QuestionID: q.ID, Content: "<p>" + gofakeit.Sentence(8) + "</p>", UserID: author.ID}
	require.NoError(t, db.Create(a).Error)
	require.NoError(t, db.Model(&models.Question{}).Where("id = ?", q.ID).
		UpdateColumn("answer_count", gorm.Expr("answer_count + 1")).Error)
	return a
}
