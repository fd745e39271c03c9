package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/validator"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
)

// CreateUserInput captures new user metadata.
type CreateUserInput struct {
	Email string
	Name  string
}

// UserService owns user bootstrap plus the membership read the invitation
// lifecycle needs: whether an email address already holds access to an account.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Create registers a new user.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(input.Email)
	if !validator.ValidateEmail(email) {
		return nil, apperrors.NewBadRequest("a valid email address is required")
	}

	user := &models.User{
		Email:    email,
		Name:     input.Name,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("a user with this email already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFailure("user service: get user", err)
	}
	return &user, nil
}

// FindByEmail returns the user with the given address, if any.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure("user service: find by email", err)
	}
	return &user, nil
}

// HasAccess reports whether a user with this email already holds an access
// record for the account, joining through account_accesses by address.
func (s *UserService) HasAccess(ctx context.Context, accountID, email string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.AccountAccess{}).
		Joins("JOIN users ON users.id = account_accesses.user_id").
		Where("account_accesses.account_id = ? AND users.email = ?", accountID, normalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, storeFailure("user service: check access", err)
	}
	return count > 0, nil
}
