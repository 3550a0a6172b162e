package repository

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newContentRepo(t *testing.T) (*contentRepository, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return NewContentRepository(db, nil).(*contentRepository), db
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), "error: %v", err)
}

func TestCreateQuestion_ResolvesTags(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "asker")

	q := &models.Question{Title: "Channels", Slug: "channels-1", Description: "<p>how</p>", UserID: author.ID}
	require.NoError(t, repo.CreateQuestion(ctx, q, []string{"Go", " go ", "Databases"}))
	require.NotZero(t, q.ID)
	assert.Len(t, q.Tags, 2)

	second := &models.Question{Title: "Select", Slug: "select-1", Description: "<p>x</p>", UserID: author.ID}
	require.NoError(t, repo.CreateQuestion(ctx, second, []string{"GO"}))

	var goTag models.Tag
	require.NoError(t, db.Where("slug = ?", "go").First(&goTag).Error)
	assert.Equal(t, "Go", goTag.Name, "first spelling wins")
	assert.Equal(t, 2, goTag.QuestionCount)

	got, err := repo.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionOpen, got.Status)
	assert.Equal(t, "asker", got.User.Username)
	assert.Empty(t, got.User.Password)
	assert.Len(t, got.Tags, 2)
}

func TestCreateQuestion_RejectsBlankTagSlug(t *testing.T) {
	repo, db := newContentRepo(t)
	author := testutil.CreateUser(t, db, "")

	q := &models.Question{Title: "t", Slug: "t-1", Description: "d", UserID: author.ID}
	err := repo.CreateQuestion(context.Background(), q, []string{"???"})
	assertCode(t, err, models.CodeValidation)

	var count int64
	require.NoError(t, db.Model(&models.Question{}).Count(&count).Error)
	assert.Zero(t, count, "transaction must roll back")
}

func TestCreateQuestion_TagsMatchByName(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "")

	q := &models.Question{Title: "Langs", Slug: "langs-1", Description: "<p>x</p>", UserID: author.ID}
	require.NoError(t, repo.CreateQuestion(ctx, q, []string{"C", "C++", "C#"}))
	require.Len(t, q.Tags, 3)

	var slugs []string
	require.NoError(t, db.Model(&models.Tag{}).Order("slug").Pluck("slug", &slugs).Error)
	assert.Equal(t, []string{"c", "c-plus-plus", "c-sharp"}, slugs)

	again := &models.Question{Title: "More", Slug: "more-1", Description: "<p>x</p>", UserID: author.ID}
	require.NoError(t, repo.CreateQuestion(ctx, again, []string{"c++"}))
	require.Len(t, again.Tags, 1)
	assert.Equal(t, "C++", again.Tags[0].Name)

	// "C Plus Plus" slugs like "C++" but names a different tag.
	clash := &models.Question{Title: "Clash", Slug: "clash-1", Description: "<p>x</p>", UserID: author.ID}
	err := repo.CreateQuestion(ctx, clash, []string{"C Plus Plus"})
	assertCode(t, err, models.CodeValidation)
}

func TestFetchQuestion(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	q := testutil.CreateQuestion(t, db, testutil.CreateUser(t, db, ""))

	bySlug, err := repo.FetchQuestion(ctx, q.Slug)
	require.NoError(t, err)
	assert.Equal(t, q.ID, bySlug.ID)

	byID, err := repo.FetchQuestion(ctx, strconv.FormatUint(uint64(q.ID), 10))
	require.NoError(t, err)
	assert.Equal(t, q.ID, byID.ID)

	_, err = repo.FetchQuestion(ctx, "no-such-question")
	assertCode(t, err, models.CodeNotFound)
	_, err = repo.FetchQuestion(ctx, "9999")
	assertCode(t, err, models.CodeNotFound)
	_, err = repo.FetchQuestion(ctx, "  ")
	assertCode(t, err, models.CodeValidation)
}

func TestUpdateVoteCount_NeverNegative(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, user)
	a := testutil.CreateAnswer(t, db, q, user)

	for _, ref := range []models.EntityRef{{Kind: models.EntityQuestion, ID: q.ID}, {Kind: models.EntityAnswer, ID: a.ID}} {
		t.Run(string(ref.Kind), func(t *testing.T) {
			expected := 0
			for _, delta := range []int{-1, -1, 1, 1, -1, 1, -1, -1, -1, 1} {
				got, err := repo.UpdateVoteCount(ctx, ref, delta)
				require.NoError(t, err)
				expected = max(0, expected+delta)
				assert.Equal(t, expected, got)
				assert.GreaterOrEqual(t, got, 0)
			}
		})
	}
}

func TestUpdateVoteCount_Errors(t *testing.T) {
	repo, _ := newContentRepo(t)
	ctx := context.Background()

	_, err := repo.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityAnswer, ID: 404}, 1)
	assertCode(t, err, models.CodeNotFound)

	_, err = repo.UpdateVoteCount(ctx, models.EntityRef{Kind: "comment", ID: 1}, 1)
	assertCode(t, err, models.CodeValidation)
}

func TestUpdateVoteCount_RollsBackOnStorageError(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewContentRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE answers SET vote_count")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.UpdateVoteCount(context.Background(), models.EntityRef{Kind: models.EntityAnswer, ID: 1}, 1)
	assertCode(t, err, models.CodeInternal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleAccepted_SingleAcceptedAnswer(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, author)
	a1 := testutil.CreateAnswer(t, db, q, testutil.CreateUser(t, db, ""))
	a2 := testutil.CreateAnswer(t, db, q, testutil.CreateUser(t, db, ""))
	a3 := testutil.CreateAnswer(t, db, q, testutil.CreateUser(t, db, ""))

	acceptedIDs := func() []uint {
		var ids []uint
		require.NoError(t, db.Model(&models.Answer{}).Where("question_id = ? AND accepted = ?", q.ID, true).Pluck("id", &ids).Error)
		return ids
	}
	reload := func() models.Question {
		var got models.Question
		require.NoError(t, db.First(&got, q.ID).Error)
		return got
	}

	got, accepted, err := repo.ToggleAccepted(ctx, a1.ID)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.True(t, got.Accepted)
	assert.Equal(t, []uint{a1.ID}, acceptedIDs())

	_, accepted, err = repo.ToggleAccepted(ctx, a2.ID)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, []uint{a2.ID}, acceptedIDs())
	stored := reload()
	require.NotNil(t, stored.AcceptedAnswerID)
	assert.Equal(t, a2.ID, *stored.AcceptedAnswerID)
	assert.Equal(t, models.QuestionAccepted, stored.Status)

	got, accepted, err = repo.ToggleAccepted(ctx, a2.ID)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.False(t, got.Accepted)
	assert.Empty(t, acceptedIDs())
	stored = reload()
	assert.Nil(t, stored.AcceptedAnswerID)
	assert.Equal(t, models.QuestionOpen, stored.Status)

	_, _, err = repo.ToggleAccepted(ctx, a3.ID+100)
	assertCode(t, err, models.CodeNotFound)
}

func TestToggleAccepted_ConcurrentFlipsSerialize(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, user)
	a := testutil.CreateAnswer(t, db, q, user)

	const n = 5
	flips := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, accepted, err := repo.ToggleAccepted(ctx, a.ID)
			assert.NoError(t, err)
			flips[idx] = accepted
		}(i)
	}
	wg.Wait()

	acceptedFlips := 0
	for _, f := range flips {
		if f {
			acceptedFlips++
		}
	}
	assert.Equal(t, 3, acceptedFlips, "flips alternate starting from unaccepted")

	var stored models.Answer
	require.NoError(t, db.First(&stored, a.ID).Error)
	assert.True(t, stored.Accepted, "an odd number of toggles leaves the answer accepted")
}

func TestToggleAccepted_KeepsModeratedStatus(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, user)
	a := testutil.CreateAnswer(t, db, q, user)
	require.NoError(t, db.Model(q).Update("status", models.QuestionRejected).Error)

	_, _, err := repo.ToggleAccepted(ctx, a.ID)
	require.NoError(t, err)

	var stored models.Question
	require.NoError(t, db.First(&stored, q.ID).Error)
	assert.Equal(t, models.QuestionRejected, stored.Status)
}

func TestCreateAnswer(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, user)

	a := &models.Answer{QuestionID: q.ID, Content: "<p>use a mutex</p>", UserID: user.ID, VoteCount: 9, Accepted: true}
	require.NoError(t, repo.CreateAnswer(ctx, a))
	assert.Zero(t, a.VoteCount)
	assert.False(t, a.Accepted)

	var stored models.Question
	require.NoError(t, db.First(&stored, q.ID).Error)
	assert.Equal(t, 1, stored.AnswerCount)

	err := repo.CreateAnswer(ctx, &models.Answer{QuestionID: 999, Content: "x", UserID: user.ID})
	assertCode(t, err, models.CodeNotFound)
}

func TestListAnswers_Ordering(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "")
	q := testutil.CreateQuestion(t, db, user)

	oldLow := testutil.CreateAnswer(t, db, q, user)
	high := testutil.CreateAnswer(t, db, q, user)
	newLow := testutil.CreateAnswer(t, db, q, user)
	accepted := testutil.CreateAnswer(t, db, q, user)

	_, err := repo.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityAnswer, ID: high.ID}, 1)
	require.NoError(t, err)
	_, _, err = repo.ToggleAccepted(ctx, accepted.ID)
	require.NoError(t, err)
	require.NoError(t, repo.CreateComment(ctx, &models.Comment{AnswerID: high.ID, Content: "+1", UserID: user.ID}))

	answers, err := repo.ListAnswers(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, answers, 4)
	assert.Equal(t, []uint{accepted.ID, high.ID, oldLow.ID, newLow.ID},
		[]uint{answers[0].ID, answers[1].ID, answers[2].ID, answers[3].ID})
	require.Len(t, answers[1].Comments, 1)
	assert.Equal(t, user.Username, answers[1].Comments[0].User.Username)
}

func TestListQuestions_FiltersAndSorts(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	mk := func(title string, author *models.User, tags ...string) *models.Question {
		q := &models.Question{Title: title, Slug: title, Description: "<p>" + title + " body</p>", UserID: author.ID}
		require.NoError(t, repo.CreateQuestion(ctx, q, tags))
		return q
	}
	goroutines := mk("goroutines", alice, "go")
	indexes := mk("indexes", bob, "sql")
	generics := mk("generics", bob, "go")

	_, err := repo.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityQuestion, ID: indexes.ID}, 1)
	require.NoError(t, err)
	testutil.CreateAnswer(t, db, generics, alice)
	require.NoError(t, db.Model(goroutines).Update("status", models.QuestionPending).Error)

	ids := func(qs []models.Question) []uint {
		out := make([]uint, len(qs))
		for i := range qs {
			out[i] = qs[i].ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter QuestionFilter
		sort   QuestionSort
		want   []uint
	}{
		{"newest", QuestionFilter{}, SortNewest, []uint{generics.ID, indexes.ID, goroutines.ID}},
		{"by tag", QuestionFilter{TagSlug: "Go"}, SortNewest, []uint{generics.ID, goroutines.ID}},
		{"search", QuestionFilter{Search: "INDEX"}, SortNewest, []uint{indexes.ID}},
		{"author", QuestionFilter{AuthorID: alice.ID}, SortNewest, []uint{goroutines.ID}},
		{"public only", QuestionFilter{Statuses: []models.QuestionStatus{models.QuestionOpen, models.QuestionAccepted}}, SortNewest, []uint{generics.ID, indexes.ID}},
		{"unanswered", QuestionFilter{Unanswered: true}, SortNewest, []uint{indexes.ID, goroutines.ID}},
		{"votes", QuestionFilter{}, SortVotes, []uint{indexes.ID, generics.ID, goroutines.ID}},
		{"answers", QuestionFilter{}, SortAnswers, []uint{generics.ID, indexes.ID, goroutines.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.ListQuestions(ctx, tt.filter, tt.sort, 20, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, int64(len(tt.want)), total)
		})
	}

	page, total, err := repo.ListQuestions(ctx, QuestionFilter{}, SortNewest, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uint{indexes.ID}, ids(page))
}

func TestParseQuestionSort(t *testing.T) {
	assert.Equal(t, SortVotes, ParseQuestionSort(" Votes "))
	assert.Equal(t, SortViews, ParseQuestionSort("views"))
	assert.Equal(t, SortNewest, ParseQuestionSort("hot"))
	assert.Equal(t, SortNewest, ParseQuestionSort(""))
}

func TestIncrementViewsAndStatus(t *testing.T) {
	repo, db := newContentRepo(t)
	ctx := context.Background()
	q := testutil.CreateQuestion(t, db, testutil.CreateUser(t, db, ""))

	for want := 1; want <= 3; want++ {
		views, err := repo.IncrementViews(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, want, views)
	}
	_, err := repo.IncrementViews(ctx, 999)
	assertCode(t, err, models.CodeNotFound)

	updated, err := repo.SetQuestionStatus(ctx, q.ID, models.QuestionRejected)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionRejected, updated.Status)
	_, err = repo.SetQuestionStatus(ctx, 999, models.QuestionOpen)
	assertCode(t, err, models.CodeNotFound)
}

func TestGetQuestion_CacheInvalidatedByVotes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr, store := testutil.NewStore(t)
	repo := NewContentRepository(db, store)
	ctx := context.Background()
	q := testutil.CreateQuestion(t, db, testutil.CreateUser(t, db, ""))

	_, err := repo.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.QuestionKey(q.ID)))

	_, err = repo.UpdateVoteCount(ctx, models.EntityRef{Kind: models.EntityQuestion, ID: q.ID}, 1)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.QuestionKey(q.ID)))

	got, err := repo.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VoteCount)
}

func TestCreateComment_MissingAnswer(t *testing.T) {
	repo, db := newContentRepo(t)
	user := testutil.CreateUser(t, db, "")

	err := repo.CreateComment(context.Background(), &models.Comment{AnswerID: 42, Content: "hi", UserID: user.ID})
	assertCode(t, err, models.CodeNotFound)
}

func TestGetUsersByUsernames(t *testing.T) {
	repo, db := newContentRepo(t)
	testutil.CreateUser(t, db, "Carol")
	testutil.CreateUser(t, db, "dave")

	users, err := repo.GetUsersByUsernames(context.Background(), []string{"carol", "DAVE", "nobody"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.GetUsersByUsernames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}
