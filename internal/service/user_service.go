package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/validation"
)

const maxBioRunes = 500

// UserService reads and edits profiles. Registration and credentials live
// in the session store.
type UserService struct {
	users repository.UserRepository
}

// UpdateProfileInput is the editable part of a profile. An empty Email
// keeps the current address.
type UpdateProfileInput struct {
	Bio   string `json:"bio"`
	Email string `json:"email"`
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetUserByUsername matches case-insensitively and strips the password hash.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	switch {
	case err != nil:
		return nil, err
	case user == nil:
		return nil, models.NewNotFoundError("User", username)
	}
	user.Password = ""
	return user, nil
}

// UpdateProfile trims the bio and, when the address changes, checks the new
// email's format and that no other account holds it.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in UpdateProfileInput) (*models.User, error) {
	if user == nil {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	bio := strings.TrimSpace(in.Bio)
	if utf8.RuneCountInString(bio) > maxBioRunes {
		return nil, models.NewValidationError("Bio too long (max 500 characters)")
	}

	email := strings.TrimSpace(in.Email)
	if email != "" && !strings.EqualFold(email, user.Email) {
		if err := s.checkEmailFree(ctx, user.ID, email); err != nil {
			return nil, err
		}
	}
	return s.users.UpdateProfile(ctx, user.ID, bio, email)
}

func (s *UserService) checkEmailFree(ctx context.Context, userID uint, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	holder, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != userID {
		return models.NewConflictError("Email already in use")
	}
	return nil
}

// SetRole changes a user's role by username. The admin CLI calls it without
// a request identity.
func (s *UserService) SetRole(ctx context.Context, username string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("Unknown role: " + string(role))
	}
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	return s.users.SetRole(ctx, user.ID, role)
}
