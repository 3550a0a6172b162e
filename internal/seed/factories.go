package seed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"stackit/internal/models"
	"stackit/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "StackIt-Demo-2024"

// Factory builds demo entities. Users are written directly; questions,
// answers and comments are built as workflow inputs so the seeded data
// passes the same rules as API traffic.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options
	hash  string
	seq   int
	now   func() time.Time
}

// NewFactory creates a Factory bound to db. A zero opts.Seed picks a random seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed), opts: opts, now: time.Now}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash demo password: %w", err)
	}
	f.hash = string(hash)
	return f.hash, nil
}

// Username returns a unique name in the mention alphabet.
func (f *Factory) Username() string {
	f.seq++
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, f.faker.Username())
	if len(base) > 24 {
		base = base[:24]
	}
	if len(base) < 3 {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, f.seq)
}

// CreateUser persists a user with the demo password. Overrides run before
// the insert.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	username := f.Username()
	user := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: hash,
		Role:     models.RoleUser,
		Bio:      f.faker.Sentence(10),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// QuestionInput builds a question with one to three tags from pool.
func (f *Factory) QuestionInput(pool []string) service.QuestionInput {
	tags := append([]string(nil), pool...)
	f.faker.ShuffleStrings(tags)
	n := f.faker.Number(1, 3)
	if n > len(tags) {
		n = len(tags)
	}

	title := strings.TrimSpace(f.faker.Question())
	if title == "" {
		title = f.faker.HackerPhrase() + "?"
	}
	return service.QuestionInput{
		Title:       title,
		Description: "<p>" + f.faker.Paragraph(1, 3, 12, " ") + "</p><pre><code>" + f.faker.HackerPhrase() + "</code></pre>",
		Tags:        tags[:n],
	}
}

// AnswerBody returns a short rich-text answer.
func (f *Factory) AnswerBody() string {
	return "<p>" + f.faker.Paragraph(1, 2, 14, " ") + "</p>"
}

// CommentBody returns a plain-text comment, optionally mentioning username.
func (f *Factory) CommentBody(mention string) string {
	body := f.faker.Sentence(8)
	if mention != "" {
		body = "@" + mention + " " + body
	}
	return body
}

// Chance reports true with the given percent probability.
func (f *Factory) Chance(percent int) bool {
	return f.faker.Number(1, 100) <= percent
}

// Pick returns an index in [0, n).
func (f *Factory) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// CreatedAt returns a timestamp within the last MaxDays days, not before after.
func (f *Factory) CreatedAt(after time.Time) time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	now := f.now()
	earliest := now.Add(-time.Duration(maxDays) * 24 * time.Hour)
	if after.After(earliest) {
		earliest = after
	}
	window := now.Sub(earliest)
	if window <= 0 {
		return now
	}
	return earliest.Add(time.Duration(f.faker.Int64()%int64(window+1)).Abs())
}

// Backdate rewrites created_at of one row.
func (f *Factory) Backdate(ctx context.Context, model any, id uint, at time.Time) error {
	return f.db.WithContext(ctx).Model(model).Where("id = ?", id).UpdateColumn("created_at", at).Error
}
