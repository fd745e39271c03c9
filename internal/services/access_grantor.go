package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
	"github.com/nferrante/accesshub/pkg/metrics"
)

// AccessGrantor persists membership grants. Grant is idempotent: concurrent
// accept attempts, or an accept racing a grant created elsewhere, converge on
// the single existing row instead of erroring or duplicating membership.
type AccessGrantor struct {
	db *gorm.DB
}

// NewAccessGrantor constructs an AccessGrantor.
func NewAccessGrantor(db *gorm.DB) (*AccessGrantor, error) {
	if db == nil {
		return nil, errors.New("access grantor: db is required")
	}
	return &AccessGrantor{db: db}, nil
}

// Grant inserts an access record for (account, user). The unique index is the
// arbiter: on a violation the existing record is returned with created=false.
func (g *AccessGrantor) Grant(ctx context.Context, accountID, userID string, role models.Role) (*models.AccountAccess, bool, error) {
	ctx = ensureContext(ctx)
	if accountID == "" || userID == "" {
		return nil, false, errors.New("access grantor: account id and user id are required")
	}
	if !role.Valid() {
		return nil, false, fmt.Errorf("access grantor: invalid role %q", role)
	}

	access := &models.AccountAccess{
		AccountID: accountID,
		UserID:    userID,
		Role:      role,
	}

	err := g.db.WithContext(ctx).Create(access).Error
	if err == nil {
		metrics.AccessGrants.WithLabelValues("created").Inc()
		return access, true, nil
	}
	if !isUniqueConstraintError(err) {
		return nil, false, storeFailure("access grantor: grant", err)
	}

	existing, findErr := g.FindByAccountAndUser(ctx, accountID, userID)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		// Lost the insert race to a row that vanished again; surface the
		// original conflict so the caller can retry.
		return nil, false, storeFailure("access grantor: grant", err)
	}

	metrics.AccessGrants.WithLabelValues("already_granted").Inc()
	return existing, false, nil
}

// FindByAccountAndUser returns the access record for the pair, if any.
func (g *AccessGrantor) FindByAccountAndUser(ctx context.Context, accountID, userID string) (*models.AccountAccess, error) {
	ctx = ensureContext(ctx)

	var access models.AccountAccess
	err := g.db.WithContext(ctx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		First(&access).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure("access grantor: find", err)
	}
	return &access, nil
}
