package session

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"stackit/internal/cache"
	"stackit/internal/mail"
	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret-that-is-long-enough-1234"
	testPassword = "Correct-Horse-9"
)

type outbox struct {
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *outbox) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr, rdb := testutil.NewRedis(t)
	box := &outbox{}
	s := NewStore(repository.NewUserRepository(db, cache.NewStore(rdb)), rdb, box, Options{
		Secret:     testSecret,
		TTL:        time.Hour,
		PublicURL:  "https://stackit.test/",
		BcryptCost: bcrypt.MinCost,
	})
	return s, mr, box
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), err.Error())
}

func TestRegisterAndLogin(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	user, token, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "Ada@Example.com", Password: testPassword})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Empty(t, user.Password)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEmpty(t, token.AccessToken)

	_, _, err = s.Register(ctx, RegisterInput{Username: "ADA", Email: "other@example.com", Password: testPassword})
	assertCode(t, err, models.CodeConflict)

	_, _, err = s.Register(ctx, RegisterInput{Username: "x", Email: "x@example.com", Password: testPassword})
	assertCode(t, err, models.CodeValidation)
	_, _, err = s.Register(ctx, RegisterInput{Username: "grace", Email: "grace@example.com", Password: "short"})
	assertCode(t, err, models.CodeValidation)

	logged, token2, err := s.Login(ctx, Credentials{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.Empty(t, logged.Password)
	assert.NotEqual(t, token.AccessToken, token2.AccessToken)

	_, _, err = s.Login(ctx, Credentials{Email: "ada@example.com", Password: "Wrong-Password-1"})
	assertCode(t, err, models.CodeUnauthorized)
	_, _, err = s.Login(ctx, Credentials{Email: "nobody@example.com", Password: testPassword})
	assertCode(t, err, models.CodeUnauthorized)
	_, _, err = s.Login(ctx, Credentials{})
	assertCode(t, err, models.CodeValidation)
}

func TestTokenClaims(t *testing.T) {
	s, _, _ := newTestStore(t)
	user, token, err := s.Register(context.Background(), RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token.AccessToken, claims, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{Audience}, claims.Audience)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "1", claims.Subject)
	assert.Len(t, claims.ID, 36)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
	assert.Equal(t, user.ID, uint(1))
}

func TestAuthenticate(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	user, token, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.Authenticate(ctx, "not-a-jwt")
	assertCode(t, err, models.CodeUnauthorized)

	forged := NewStore(nil, nil, nil, Options{Secret: "another-secret-entirely-0123456789"})
	bad, err := forged.issue(user)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, bad.AccessToken)
	assertCode(t, err, models.CodeUnauthorized)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "someone-else",
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		ID:        "jti",
	}})
	raw, err := other.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, raw)
	assertCode(t, err, models.CodeUnauthorized)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Authenticate(ctx, token.AccessToken)
	assertCode(t, err, models.CodeUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	s, mr, _ := newTestStore(t)
	ctx := context.Background()
	_, token, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, token.AccessToken))
	_, err = s.Authenticate(ctx, token.AccessToken)
	assertCode(t, err, models.CodeUnauthorized)

	keys := mr.Keys()
	var blacklisted string
	for _, k := range keys {
		if strings.HasPrefix(k, "blacklist:") {
			blacklisted = k
		}
	}
	require.NotEmpty(t, blacklisted)
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(blacklisted).Seconds(), 60)

	mr.FastForward(time.Hour + time.Minute)
	assert.False(t, mr.Exists(blacklisted), "blacklist entries expire with the token")
}

func TestPasswordReset(t *testing.T) {
	s, mr, box := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, s.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, box.sent, "unknown emails get no mail")

	require.NoError(t, s.ForgotPassword(ctx, "ADA@example.com"))
	require.Len(t, box.sent, 1)
	msg := box.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)

	start := strings.Index(msg.Text, "https://stackit.test/reset-password?token=")
	require.GreaterOrEqual(t, start, 0)
	link := strings.Fields(msg.Text[start:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	assert.True(t, mr.Exists(cache.PasswordResetKey(token)))

	assertCode(t, s.ResetPassword(ctx, token, "weak"), models.CodeValidation)

	newPassword := "Brand-New-Secret-42"
	require.NoError(t, s.ResetPassword(ctx, token, newPassword))
	assertCode(t, s.ResetPassword(ctx, token, newPassword), models.CodeValidation)

	_, _, err = s.Login(ctx, Credentials{Email: "ada@example.com", Password: testPassword})
	assertCode(t, err, models.CodeUnauthorized)
	_, _, err = s.Login(ctx, Credentials{Email: "ada@example.com", Password: newPassword})
	require.NoError(t, err)
}

func TestPasswordResetRevokesIssuedTokens(t *testing.T) {
	s, mr, box := newTestStore(t)
	ctx := context.Background()
	clock := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return clock }

	user, before, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, before.AccessToken)
	require.NoError(t, err)

	require.NoError(t, s.ForgotPassword(ctx, "ada@example.com"))
	require.Len(t, box.sent, 1)
	start := strings.Index(box.sent[0].Text, "https://")
	require.GreaterOrEqual(t, start, 0)
	u, err := url.Parse(strings.Fields(box.sent[0].Text[start:])[0])
	require.NoError(t, err)

	clock = clock.Add(2 * time.Second)
	newPassword := "Brand-New-Secret-42"
	require.NoError(t, s.ResetPassword(ctx, u.Query().Get("token"), newPassword))
	assert.True(t, mr.Exists(cache.PasswordChangedKey(user.ID)))

	_, err = s.Authenticate(ctx, before.AccessToken)
	assertCode(t, err, models.CodeUnauthorized)

	_, after, err := s.Login(ctx, Credentials{Email: "ada@example.com", Password: newPassword})
	require.NoError(t, err)
	got, err := s.Authenticate(ctx, after.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestPasswordResetExpires(t *testing.T) {
	s, mr, box := newTestStore(t)
	ctx := context.Background()
	_, _, err := s.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, s.ForgotPassword(ctx, "ada@example.com"))
	require.Len(t, box.sent, 1)

	mr.FastForward(cache.PasswordResetTTL + time.Second)
	for _, k := range mr.Keys() {
		assert.False(t, strings.HasPrefix(k, "password_reset:"), k)
	}
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, IdentityFrom(ctx))
	assert.Equal(t, ctx, WithIdentity(ctx, nil))

	user := &models.User{ID: 3, Username: "ada"}
	ctx = WithIdentity(ctx, user)
	assert.Same(t, user, IdentityFrom(ctx))
	assert.Same(t, user, (&Store{}).CurrentIdentity(ctx))
}
