package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
)

var (
	// ErrInvitationNotFound indicates no invitation matches the identifier.
	ErrInvitationNotFound = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	// ErrDuplicateInvitation signals an open invitation already occupies the
	// (account, email) slot. The lifecycle service absorbs it by re-reading
	// the winning row.
	ErrDuplicateInvitation = apperrors.New("INVITATION_EXISTS", "An open invitation already exists for this address", http.StatusConflict)
	// ErrInvitationResolved reports that a conditional transition matched no
	// open row: another caller already resolved the invitation.
	ErrInvitationResolved = apperrors.New("INVITATION_RESOLVED", "Invitation has already been resolved", http.StatusConflict)
)

// TransitionField names the terminal timestamp a transition sets.
type TransitionField string

const (
	TransitionAccepted TransitionField = "accepted_at"
	TransitionDeclined TransitionField = "declined_at"
	TransitionRevoked  TransitionField = "revoked_at"
)

func (f TransitionField) valid() bool {
	switch f {
	case TransitionAccepted, TransitionDeclined, TransitionRevoked:
		return true
	default:
		return false
	}
}

// InvitationStore persists invitation rows. It owns the two storage-level
// guarantees of the subsystem: at most one open invitation per
// (account, email), and first-terminal-transition-wins via a single
// conditional UPDATE. Rows are never deleted.
type InvitationStore struct {
	db *gorm.DB
}

// NewInvitationStore constructs an InvitationStore.
func NewInvitationStore(db *gorm.DB) (*InvitationStore, error) {
	if db == nil {
		return nil, errors.New("invitation store: db is required")
	}
	return &InvitationStore{db: db}, nil
}

// Insert persists a new open invitation. The unique index closes the
// check-then-insert race: a concurrent insert for the same pair surfaces as
// ErrDuplicateInvitation rather than a second row.
func (s *InvitationStore) Insert(ctx context.Context, inv *models.Invitation) error {
	ctx = ensureContext(ctx)
	if inv == nil {
		return errors.New("invitation store: invitation is required")
	}
	inv.Active = models.Open()

	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateInvitation.WithInternal(err)
		}
		return storeFailure("invitation store: insert", err)
	}
	return nil
}

// GetByID loads an invitation by identifier.
func (s *InvitationStore) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var inv models.Invitation
	if err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, storeFailure("invitation store: get by id", err)
	}
	return &inv, nil
}

// FindOpenByAccountAndEmail returns the open invitation for the pair, if any.
// Open rows may still be pending or already past expiry; the caller decides
// via StatusAt.
func (s *InvitationStore) FindOpenByAccountAndEmail(ctx context.Context, accountID, email string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var inv models.Invitation
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND email = ? AND active IS NOT NULL", accountID, normalizeEmail(email)).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFailure("invitation store: find open", err)
	}
	return &inv, nil
}

// ListByAccount returns all invitations for the account, newest first.
func (s *InvitationStore) ListByAccount(ctx context.Context, accountID string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var rows []models.Invitation
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("sent_at DESC").
		Find(&rows).Error; err != nil {
		return nil, storeFailure("invitation store: list by account", err)
	}
	return rows, nil
}

// TransitionIfPending atomically sets one terminal timestamp, provided no
// terminal timestamp is set yet. The WHERE clause is the compare half of the
// compare-and-set; RowsAffected reports whether this caller won. The same
// UPDATE clears the Active marker so the uniqueness slot frees up.
func (s *InvitationStore) TransitionIfPending(ctx context.Context, id string, field TransitionField, at time.Time) (*models.Invitation, error) {
	ctx = ensureContext(ctx)
	if !field.valid() {
		return nil, fmt.Errorf("invitation store: unknown transition field %q", field)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND accepted_at IS NULL AND declined_at IS NULL AND revoked_at IS NULL", id).
		Updates(map[string]any{string(field): at, "active": nil})
	if res.Error != nil {
		return nil, storeFailure("invitation store: transition", res.Error)
	}

	if res.RowsAffected == 0 {
		// Either the row is gone or another caller resolved it first.
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvitationResolved
	}

	return s.GetByID(ctx, id)
}

// RetireIfExpired clears the Active marker of an invitation that expired
// without ever being resolved, freeing the slot for a fresh invitation. The
// condition keeps it safe under races: a row that was meanwhile accepted,
// declined, or revoked is left untouched.
func (s *InvitationStore) RetireIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND active IS NOT NULL AND accepted_at IS NULL AND declined_at IS NULL AND revoked_at IS NULL AND expires_at < ?", id, now).
		Update("active", nil)
	if res.Error != nil {
		return false, storeFailure("invitation store: retire expired", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListOpenExpired returns open invitations whose expiry already passed.
// Used by the maintenance job; correctness never depends on it.
func (s *InvitationStore) ListOpenExpired(ctx context.Context, now time.Time) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var rows []models.Invitation
	if err := s.db.WithContext(ctx).
		Where("active IS NOT NULL AND accepted_at IS NULL AND declined_at IS NULL AND revoked_at IS NULL AND expires_at < ?", now).
		Find(&rows).Error; err != nil {
		return nil, storeFailure("invitation store: list open expired", err)
	}
	return rows, nil
}
