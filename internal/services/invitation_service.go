package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/logger"
	"github.com/nferrante/accesshub/pkg/metrics"
	"github.com/nferrante/accesshub/pkg/validator"
)

const defaultInvitationExpiry = 14 * 24 * time.Hour

var (
	// ErrAlreadyMember signals the invited address already holds access to the account.
	ErrAlreadyMember = apperrors.New("ALREADY_MEMBER", "User is already a member of this account", http.StatusConflict)
)

// NotPendingError reports that an operation required a pending invitation but
// found it in a terminal state. Status carries the specific reason so callers
// can tell the user whether the invitation expired, was revoked, and so on.
type NotPendingError struct {
	Status models.InvitationStatus
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("invitation is not pending: %s", e.Status)
}

// Notifier informs interested parties of lifecycle transitions. Calls are
// best-effort: implementations must not block the lifecycle and report
// nothing back.
type Notifier interface {
	InvitationCreated(ctx context.Context, inv *models.Invitation)
	InvitationAccepted(ctx context.Context, inv *models.Invitation, account *models.Account, userID string)
	InvitationDeclined(ctx context.Context, inv *models.Invitation)
	InvitationRevoked(ctx context.Context, inv *models.Invitation)
}

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithClock injects a custom clock, primarily for testing.
func WithClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationExpiry overrides the invitation lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithNotifier attaches a transition notifier.
func WithNotifier(n Notifier) InvitationOption {
	return func(s *InvitationService) {
		s.notifier = n
	}
}

// CreateInvitationInput captures a new invitation request.
type CreateInvitationInput struct {
	AccountID       string
	Email           string
	Role            string
	InvitedByUserID string
}

// AccountSummary is the caller-facing account payload returned from Accept.
type AccountSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// AcceptResult reports the membership obtained by accepting an invitation.
type AcceptResult struct {
	Account AccountSummary `json:"account"`
	Role    models.Role    `json:"role"`
}

// InvitationService drives the invitation lifecycle: create, accept, decline,
// revoke. It holds no locks; every mutation goes through the store's and
// grantor's conditional writes, so the first terminal transition wins under
// arbitrary interleaving.
type InvitationService struct {
	store    *InvitationStore
	grantor  *AccessGrantor
	accounts *AccountService
	users    *UserService
	notifier Notifier
	now      func() time.Time
	expiry   time.Duration
	log      *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(
	store *InvitationStore,
	grantor *AccessGrantor,
	accounts *AccountService,
	users *UserService,
	opts ...InvitationOption,
) (*InvitationService, error) {
	if store == nil {
		return nil, errors.New("invitation service: store is required")
	}
	if grantor == nil {
		return nil, errors.New("invitation service: grantor is required")
	}
	if accounts == nil {
		return nil, errors.New("invitation service: account service is required")
	}
	if users == nil {
		return nil, errors.New("invitation service: user service is required")
	}

	service := &InvitationService{
		store:    store,
		grantor:  grantor,
		accounts: accounts,
		users:    users,
		now:      time.Now,
		expiry:   defaultInvitationExpiry,
		log:      logger.WithModule("invitations"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Create issues an invitation for an email address to join an account with a
// role. The returned bool is true when a new invitation was created and false
// when an equivalent open invitation already existed (a successful no-op:
// repeats never reset the expiry clock or mint duplicate rows).
func (s *InvitationService) Create(ctx context.Context, input CreateInvitationInput) (*models.Invitation, bool, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(input.Email)
	if !validator.ValidateEmail(email) {
		metrics.InvitationsCreated.WithLabelValues("rejected").Inc()
		return nil, false, apperrors.NewBadRequest("a valid email address is required")
	}

	role, ok := models.ParseRole(input.Role)
	if !ok {
		metrics.InvitationsCreated.WithLabelValues("rejected").Inc()
		return nil, false, apperrors.NewBadRequest("role must be one of owner, admin, member")
	}

	exists, err := s.accounts.Exists(ctx, input.AccountID)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, ErrAccountNotFound
	}

	isMember, err := s.users.HasAccess(ctx, input.AccountID, email)
	if err != nil {
		return nil, false, err
	}
	if isMember {
		metrics.InvitationsCreated.WithLabelValues("already_member").Inc()
		return nil, false, ErrAlreadyMember
	}

	// The find-or-insert sequence can lose two races back to back: the insert
	// conflicts with a rival, and the rival resolves before the re-read. One
	// more pass settles it; a second double-race in a row is treated as
	// transient.
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now()

		existing, err := s.store.FindOpenByAccountAndEmail(ctx, input.AccountID, email)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			switch existing.StatusAt(now) {
			case models.StatusPending:
				metrics.InvitationsCreated.WithLabelValues("idempotent").Inc()
				return existing, false, nil
			case models.StatusExpired:
				// The old offer lapsed; free its uniqueness slot and issue a
				// fresh one. Losing this retire race is fine: the insert below
				// settles it either way.
				if _, err := s.store.RetireIfExpired(ctx, existing.ID, now); err != nil {
					return nil, false, err
				}
			}
		}

		inv := &models.Invitation{
			AccountID:       input.AccountID,
			Email:           email,
			Role:            role,
			InvitedByUserID: input.InvitedByUserID,
			SentAt:          now,
			ExpiresAt:       now.Add(s.expiry),
		}

		err = s.store.Insert(ctx, inv)
		if err == nil {
			metrics.InvitationsCreated.WithLabelValues("created").Inc()
			s.notifyCreated(ctx, inv)
			return inv, true, nil
		}
		if !errors.Is(err, ErrDuplicateInvitation) {
			return nil, false, err
		}

		// Lost a create race; hand back the winner's row.
		winner, findErr := s.store.FindOpenByAccountAndEmail(ctx, input.AccountID, email)
		if findErr != nil {
			return nil, false, findErr
		}
		if winner != nil {
			metrics.InvitationsCreated.WithLabelValues("idempotent").Inc()
			return winner, false, nil
		}
		// The winner resolved before the re-read; the slot is free again.
	}

	return nil, false, apperrors.ErrUnavailable.WithInternal(
		fmt.Errorf("invitation service: create for account %s kept losing insert races", input.AccountID))
}

// Accept grants the accepting user membership and marks the invitation
// accepted. A lost transition race after the grant leaves the grant in place:
// membership wins over invitation bookkeeping.
func (s *InvitationService) Accept(ctx context.Context, invitationID, acceptingUserID string) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	inv, err := s.store.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if status := inv.StatusAt(now); status != models.StatusPending {
		metrics.InvitationTransitions.WithLabelValues("accepted", "not_pending").Inc()
		return nil, &NotPendingError{Status: status}
	}

	account, err := s.accounts.Get(ctx, inv.AccountID)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.grantor.Grant(ctx, inv.AccountID, acceptingUserID, inv.Role); err != nil {
		return nil, err
	}

	updated, err := s.store.TransitionIfPending(ctx, inv.ID, TransitionAccepted, now)
	if err != nil {
		if errors.Is(err, ErrInvitationResolved) {
			metrics.InvitationTransitions.WithLabelValues("accepted", "lost_race").Inc()
			return nil, s.notPendingAfterRace(ctx, inv.ID)
		}
		return nil, err
	}

	metrics.InvitationTransitions.WithLabelValues("accepted", "success").Inc()
	s.notifyAccepted(ctx, updated, account, acceptingUserID)

	return &AcceptResult{
		Account: AccountSummary{
			ID:        account.ID,
			Name:      account.Name,
			ShortName: account.ShortName,
		},
		Role: inv.Role,
	}, nil
}

// Decline marks a pending invitation declined.
func (s *InvitationService) Decline(ctx context.Context, invitationID string) error {
	ctx = ensureContext(ctx)

	inv, err := s.store.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	now := s.now()
	if status := inv.StatusAt(now); status != models.StatusPending {
		metrics.InvitationTransitions.WithLabelValues("declined", "not_pending").Inc()
		return &NotPendingError{Status: status}
	}

	updated, err := s.store.TransitionIfPending(ctx, inv.ID, TransitionDeclined, now)
	if err != nil {
		if errors.Is(err, ErrInvitationResolved) {
			metrics.InvitationTransitions.WithLabelValues("declined", "lost_race").Inc()
			return s.notPendingAfterRace(ctx, inv.ID)
		}
		return err
	}

	metrics.InvitationTransitions.WithLabelValues("declined", "success").Inc()
	s.notifyDeclined(ctx, updated)
	return nil
}

// Revoke withdraws a pending invitation. Only the issuing account may revoke:
// ownership is verified before the state is considered, so a foreign caller
// learns nothing about the invitation's lifecycle.
func (s *InvitationService) Revoke(ctx context.Context, invitationID, requestingAccountID string) error {
	ctx = ensureContext(ctx)

	inv, err := s.store.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	if inv.AccountID != requestingAccountID {
		return apperrors.ErrForbidden
	}

	now := s.now()
	if status := inv.StatusAt(now); status != models.StatusPending {
		metrics.InvitationTransitions.WithLabelValues("revoked", "not_pending").Inc()
		return &NotPendingError{Status: status}
	}

	updated, err := s.store.TransitionIfPending(ctx, inv.ID, TransitionRevoked, now)
	if err != nil {
		if errors.Is(err, ErrInvitationResolved) {
			metrics.InvitationTransitions.WithLabelValues("revoked", "lost_race").Inc()
			return s.notPendingAfterRace(ctx, inv.ID)
		}
		return err
	}

	metrics.InvitationTransitions.WithLabelValues("revoked", "success").Inc()
	s.notifyRevoked(ctx, updated)
	return nil
}

// GetByID loads a single invitation.
func (s *InvitationService) GetByID(ctx context.Context, invitationID string) (*models.Invitation, error) {
	return s.store.GetByID(ensureContext(ctx), invitationID)
}

// ListByAccount returns the account's invitations, newest first.
func (s *InvitationService) ListByAccount(ctx context.Context, accountID string) ([]models.Invitation, error) {
	return s.store.ListByAccount(ensureContext(ctx), accountID)
}

// Now exposes the service clock so read-side callers derive status from the
// same time source the lifecycle uses.
func (s *InvitationService) Now() time.Time {
	return s.now()
}

// notPendingAfterRace re-reads a row after a lost conditional update and
// reports the terminal status the winner left behind.
func (s *InvitationService) notPendingAfterRace(ctx context.Context, invitationID string) error {
	refreshed, err := s.store.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	status := refreshed.StatusAt(s.now())
	s.log.Debug("lost transition race",
		zap.String("invitation_id", invitationID),
		zap.String("status", status.String()),
	)
	return &NotPendingError{Status: status}
}

func (s *InvitationService) notifyCreated(ctx context.Context, inv *models.Invitation) {
	if s.notifier == nil {
		return
	}
	s.notifier.InvitationCreated(ctx, inv)
}

func (s *InvitationService) notifyAccepted(ctx context.Context, inv *models.Invitation, account *models.Account, userID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.InvitationAccepted(ctx, inv, account, userID)
}

func (s *InvitationService) notifyDeclined(ctx context.Context, inv *models.Invitation) {
	if s.notifier == nil {
		return
	}
	s.notifier.InvitationDeclined(ctx, inv)
}

func (s *InvitationService) notifyRevoked(ctx context.Context, inv *models.Invitation) {
	if s.notifier == nil {
		return
	}
	s.notifier.InvitationRevoked(ctx, inv)
}
