package repository

import (
	"context"
	"errors"
	"strings"

	"stackit/internal/cache"
	"stackit/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, bio, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uint, hash string) error
	SetRole(ctx context.Context, id uint, role models.Role) (*models.User, error)
}

type userRepository struct {
	base
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, store *cache.Store) UserRepository {
	return &userRepository{base: newBase(db, store, "users")}
}

// GetByID is cached and never returns the password hash. Credential checks
// go through GetByEmail.
func (r *userRepository) GetByID(ctx context.Context, id uint) (_ *models.User, err error) {
	ctx, end := r.op(ctx, "GetByID")
	defer func() { end(err) }()

	var user models.User
	err = r.store.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return r.db.WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, translate(err, "User", id)
	}
	user.Password = ""
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "GetByEmail", "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername returns (nil, nil) when the username is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "GetByUsername", "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

func (r *userRepository) findOne(ctx context.Context, method, where string, arg string) (_ *models.User, err error) {
	ctx, end := r.op(ctx, method)
	defer func() { end(err) }()

	var user models.User
	if err = r.db.WithContext(ctx).Where(where, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// Create inserts user. Username and email clashes are conflicts.
func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, end := r.op(ctx, "Create")
	defer func() { end(err) }()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	var clashes int64
	if err = r.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(user.Username), user.Email).
		Count(&clashes).Error; err != nil {
		return models.NewInternalError(err)
	}
	if clashes > 0 {
		return models.NewConflictError("User already exists")
	}

	if err = r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	r.log.LogWrite(ctx, "Create", "user_id", user.ID)
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, bio, email string) (_ *models.User, err error) {
	ctx, end := r.op(ctx, "UpdateProfile")
	defer func() { end(err) }()

	updates := map[string]any{"bio": bio}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		updates["email"] = email
	}
	if err = r.updateColumns(ctx, id, updates); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) (err error) {
	ctx, end := r.op(ctx, "UpdatePassword")
	defer func() { end(err) }()

	return r.updateColumns(ctx, id, map[string]any{"password": hash})
}

func (r *userRepository) SetRole(ctx context.Context, id uint, role models.Role) (_ *models.User, err error) {
	ctx, end := r.op(ctx, "SetRole")
	defer func() { end(err) }()

	if !role.Valid() {
		return nil, models.NewValidationError("Unknown role: " + string(role))
	}
	if err = r.updateColumns(ctx, id, map[string]any{"role": role}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// updateColumns writes only the given columns so that a cached user (which
// lacks its hash) can never clobber the stored password.
func (r *userRepository) updateColumns(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "User", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.store.Invalidate(ctx, cache.UserKey(id))
	r.log.LogWrite(ctx, "Update", "user_id", id)
	return nil
}
