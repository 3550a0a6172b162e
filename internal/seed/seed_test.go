package seed

import (
	"context"
	"regexp"
	"testing"
	"time"

	"stackit/internal/models"
	"stackit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCatalog_Embedded(t *testing.T) {
	catalog, err := Catalog()
	require.NoError(t, err)
	assert.Len(t, catalog, 20)
	for _, tag := range catalog {
		assert.NotEmpty(t, tag.Name)
		assert.NotEmpty(t, tag.Description, tag.Name)
	}
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"duplicate":  "tags:\n  - name: Go\n  - name: go\n",
		"empty name": "tags:\n  - description: nameless\n",
		"bad yaml":   "tags: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestFactory_Username(t *testing.T) {
	f := NewFactory(nil, Options{Seed: 42})
	valid := regexp.MustCompile(`^[A-Za-z0-9]{3,30}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := f.Username()
		assert.Regexp(t, valid, name)
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
}

func TestFactory_QuestionInputTags(t *testing.T) {
	f := NewFactory(nil, Options{Seed: 7})
	pool := []string{"Go", "SQL", "Redis", "Docker"}
	for i := 0; i < 20; i++ {
		in := f.QuestionInput(pool)
		assert.NotEmpty(t, in.Title)
		assert.GreaterOrEqual(t, len(in.Tags), 1)
		assert.LessOrEqual(t, len(in.Tags), 3)
		for _, tag := range in.Tags {
			assert.Contains(t, pool, tag)
		}
	}
}

func TestFactory_CreatedAtWithinWindow(t *testing.T) {
	f := NewFactory(nil, Options{Seed: 1, MaxDays: 10})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		at := f.CreatedAt(time.Time{})
		assert.False(t, at.After(now))
		assert.False(t, at.Before(now.AddDate(0, 0, -10)))
	}

	after := now.Add(-time.Hour)
	for i := 0; i < 20; i++ {
		assert.False(t, f.CreatedAt(after).Before(after))
	}
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	s := NewSeeder(db, Options{Users: 5, Questions: 8, MaxAnswers: 3, FastHash: true, Seed: 99})

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.NewTags)
	assert.Equal(t, 5, report.Users)
	assert.Equal(t, 8, report.Questions)

	var questions []models.Question
	require.NoError(t, db.Preload("Tags").Find(&questions).Error)
	require.Len(t, questions, 8)
	for _, q := range questions {
		assert.GreaterOrEqual(t, q.VoteCount, 0)
		assert.NotEmpty(t, q.Tags)
		var answers int64
		require.NoError(t, db.Model(&models.Answer{}).Where("question_id = ?", q.ID).Count(&answers).Error)
		assert.EqualValues(t, answers, q.AnswerCount)

		var accepted int64
		require.NoError(t, db.Model(&models.Answer{}).Where("question_id = ? AND accepted = ?", q.ID, true).Count(&accepted).Error)
		assert.LessOrEqual(t, accepted, int64(1))
		if accepted == 1 {
			assert.Equal(t, models.QuestionAccepted, q.Status)
		}
	}

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(DemoPassword)))

	// A second run leaves the catalog alone.
	again, err := NewSeeder(db, Options{Clean: true, Users: 1, Seed: 5, FastHash: true}).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.NewTags)
	var count int64
	require.NoError(t, db.Model(&models.Question{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeeder_QuestionsNeedUsers(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	_, err := NewSeeder(db, Options{Questions: 1}).Run(context.Background())
	assert.Error(t, err)
}
