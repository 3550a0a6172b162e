// Package session registers users, issues and revokes access tokens and
// resolves the identity behind a request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stackit/internal/cache"
	"stackit/internal/mail"
	"stackit/internal/middleware"
	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	Issuer   = "stackit-api"
	Audience = "stackit-client"
)

// Claims are the JWT claims of an access token. Subject is the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Options configure a Store.
type Options struct {
	Secret     string
	TTL        time.Duration
	PublicURL  string
	BcryptCost int
}

// Store owns credentials and tokens. Revocation and reset tokens live in
// Redis; without a client logout only forgets the token client side and
// password reset is unavailable.
type Store struct {
	users     repository.UserRepository
	redis     *redis.Client
	mailer    mail.Mailer
	secret    []byte
	ttl       time.Duration
	publicURL string
	cost      int
	now       func() time.Time
}

func NewStore(users repository.UserRepository, rdb *redis.Client, mailer mail.Mailer, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Store{
		users:     users,
		redis:     rdb,
		mailer:    mailer,
		secret:    []byte(opts.Secret),
		ttl:       opts.TTL,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		cost:      opts.BcryptCost,
		now:       time.Now,
	}
}

// Register creates a user account and signs it in.
func (s *Store) Register(ctx context.Context, in RegisterInput) (*models.User, *Token, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}
	user.Password = ""

	token, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Store) Login(ctx context.Context, creds Credentials) (*models.User, *Token, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, nil, models.NewValidationError("Email and password are required")
	}
	user, err := s.users.GetByEmail(ctx, creds.Email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}
	user.Password = ""

	token, err := s.issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

func (s *Store) issue(user *models.User) (*Token, error) {
	if len(s.secret) == 0 {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// parse validates signature, issuer, audience and expiry.
func (s *Store) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.ID == "" {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	return claims, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Store) Authenticate(ctx context.Context, raw string) (*models.User, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	if s.redis != nil {
		if err := s.checkRevoked(ctx, claims, uint(userID)); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, uint(userID))
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// checkRevoked rejects a token that was logged out or that was issued
// before the user's last password reset. Lookup failures are logged and
// let the token through.
func (s *Store) checkRevoked(ctx context.Context, claims *Claims, userID uint) error {
	pipe := s.redis.Pipeline()
	blacklisted := pipe.Exists(ctx, cache.BlacklistKey(claims.ID))
	changed := pipe.Get(ctx, cache.PasswordChangedKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "token revocation lookup failed", "error", err)
		return nil
	}

	if blacklisted.Val() > 0 {
		return models.NewUnauthorizedError("Token has been revoked")
	}
	changedAt, err := changed.Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "corrupt password change marker", "user_id", userID, "error", err)
		return nil
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Unix() < changedAt {
		return models.NewUnauthorizedError("Token was issued before the last password change")
	}
	return nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Store) Logout(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil {
		return err
	}
	if s.redis == nil {
		middleware.Logger.WarnContext(ctx, "logout without redis, token stays valid until expiry")
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, cache.BlacklistKey(claims.ID), claims.Subject, ttl).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// ForgotPassword mails a single-use reset link. Unknown addresses succeed
// silently so that the endpoint does not reveal which emails exist.
func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(strings.TrimSpace(email)); err != nil {
		return models.NewValidationError(err.Error())
	}
	if s.redis == nil {
		return models.NewInternalError(errors.New("password reset requires redis"))
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, cache.PasswordResetKey(token), user.ID, cache.PasswordResetTTL).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("store reset token: %w", err))
	}

	link := s.publicURL + "/reset-password?token=" + token
	err = s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset your StackIt password",
		Text:    fmt.Sprintf("Hi %s,\n\nUse this link within the next hour to choose a new password:\n%s\n", user.Username, link),
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p><a href=%q>Choose a new password</a>. The link expires in one hour.</p>", user.Username, link),
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password. Every
// access token issued before the reset stops authenticating.
func (s *Store) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return models.NewValidationError("Reset token is required")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	if s.redis == nil {
		return models.NewInternalError(errors.New("password reset requires redis"))
	}

	raw, err := s.redis.GetDel(ctx, cache.PasswordResetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	userID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("corrupt reset token payload %q", raw))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return models.NewInternalError(err)
	}

	// Tokens issued before the reset are all expired once the marker is.
	changedAt := s.now().Unix()
	if err := s.redis.Set(ctx, cache.PasswordChangedKey(uint(userID)), changedAt, s.ttl).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("revoke tokens: %w", err))
	}
	return s.users.UpdatePassword(ctx, uint(userID), string(hash))
}

// CurrentIdentity returns the user attached to ctx, or nil when anonymous.
func (s *Store) CurrentIdentity(ctx context.Context) *models.User {
	return IdentityFrom(ctx)
}
