package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
)

var (
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)
)

// CreateAccountInput captures new account metadata.
type CreateAccountInput struct {
	Name      string
	ShortName string
}

// AccountService owns account bootstrap and the read surface the invitation
// lifecycle consumes (existence checks and summaries).
type AccountService struct {
	db *gorm.DB
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{db: db}, nil
}

// Create registers a new account.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("account name is required")
	}

	shortName := strings.ToLower(strings.TrimSpace(input.ShortName))
	if shortName == "" {
		return nil, apperrors.NewBadRequest("account short name is required")
	}

	account := &models.Account{
		Name:      name,
		ShortName: shortName,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("account short name already exists")
		}
		return nil, fmt.Errorf("account service: create account: %w", err)
	}

	return account, nil
}

// Get loads an account by identifier.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeFailure("account service: get account", err)
	}
	return &account, nil
}

// Exists reports whether the account is present.
func (s *AccountService) Exists(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, storeFailure("account service: check account", err)
	}
	return count > 0, nil
}
