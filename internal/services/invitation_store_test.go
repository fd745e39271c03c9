package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
)

func newStoreUnderTest(t *testing.T) (*InvitationStore, *gorm.DB, *models.Account) {
	t.Helper()

	db := openServiceTestDB(t)
	store, err := NewInvitationStore(db)
	require.NoError(t, err)
	account := seedAccount(t, db, "Acme", "acme")
	return store, db, account
}

func openInvitation(t *testing.T, store *InvitationStore, accountID, email string, sentAt time.Time) *models.Invitation {
	t.Helper()

	inv := &models.Invitation{
		AccountID: accountID,
		Email:     email,
		Role:      models.RoleMember,
		SentAt:    sentAt,
		ExpiresAt: sentAt.Add(14 * 24 * time.Hour),
	}
	require.NoError(t, store.Insert(context.Background(), inv))
	return inv
}

func TestInsertRejectsSecondOpenInvitation(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	openInvitation(t, store, account.ID, "bob@example.com", now)

	dup := &models.Invitation{
		AccountID: account.ID,
		Email:     "bob@example.com",
		Role:      models.RoleAdmin,
		SentAt:    now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	err := store.Insert(context.Background(), dup)
	require.ErrorIs(t, err, ErrDuplicateInvitation)

	// A different account may invite the same address concurrently.
	other := seedAccount(t, store.db, "Globex", "globex")
	openInvitation(t, store, other.ID, "bob@example.com", now)
}

func TestTransitionIfPendingFirstCallerWins(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	inv := openInvitation(t, store, account.ID, "bob@example.com", now)

	accepted, err := store.TransitionIfPending(context.Background(), inv.ID, TransitionAccepted, now)
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedAt)
	require.Nil(t, accepted.Active)

	// A racing decline observes the row as already resolved; nothing mutates.
	_, err = store.TransitionIfPending(context.Background(), inv.ID, TransitionDeclined, now)
	require.ErrorIs(t, err, ErrInvitationResolved)

	reloaded, err := store.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.AcceptedAt)
	require.Nil(t, reloaded.DeclinedAt)
	require.Nil(t, reloaded.RevokedAt)
}

func TestTransitionIfPendingUnknownInvitation(t *testing.T) {
	store, _, _ := newStoreUnderTest(t)

	_, err := store.TransitionIfPending(context.Background(), "missing-id", TransitionRevoked, time.Now())
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestTransitionIfPendingRejectsUnknownField(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	inv := openInvitation(t, store, account.ID, "bob@example.com", time.Now())

	_, err := store.TransitionIfPending(context.Background(), inv.ID, TransitionField("sent_at"), time.Now())
	require.Error(t, err)
}

func TestTransitionFreesUniquenessSlot(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	inv := openInvitation(t, store, account.ID, "bob@example.com", now)
	_, err := store.TransitionIfPending(context.Background(), inv.ID, TransitionDeclined, now)
	require.NoError(t, err)

	found, err := store.FindOpenByAccountAndEmail(context.Background(), account.ID, "bob@example.com")
	require.NoError(t, err)
	require.Nil(t, found)

	// History is preserved while a new open row becomes possible.
	second := openInvitation(t, store, account.ID, "bob@example.com", now.Add(time.Hour))
	require.NotEqual(t, inv.ID, second.ID)

	rows, err := store.ListByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, second.ID, rows[0].ID) // newest first
}

func TestRetireIfExpired(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	sent := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := openInvitation(t, store, account.ID, "bob@example.com", sent)

	// Not yet expired: nothing happens.
	retired, err := store.RetireIfExpired(context.Background(), inv.ID, sent.Add(24*time.Hour))
	require.NoError(t, err)
	require.False(t, retired)

	after := sent.Add(15 * 24 * time.Hour)
	retired, err = store.RetireIfExpired(context.Background(), inv.ID, after)
	require.NoError(t, err)
	require.True(t, retired)

	// Timestamps stay untouched; only the slot is released.
	reloaded, err := store.GetByID(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Nil(t, reloaded.Active)
	require.Nil(t, reloaded.AcceptedAt)
	require.Equal(t, models.StatusExpired, reloaded.StatusAt(after))

	// Resolved rows are never retired.
	second := openInvitation(t, store, account.ID, "carol@example.com", sent)
	_, err = store.TransitionIfPending(context.Background(), second.ID, TransitionRevoked, sent)
	require.NoError(t, err)
	retired, err = store.RetireIfExpired(context.Background(), second.ID, after)
	require.NoError(t, err)
	require.False(t, retired)
}

func TestListOpenExpired(t *testing.T) {
	store, _, account := newStoreUnderTest(t)
	sent := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	expired := openInvitation(t, store, account.ID, "old@example.com", sent)
	fresh := openInvitation(t, store, account.ID, "new@example.com", sent.Add(20*24*time.Hour))

	rows, err := store.ListOpenExpired(context.Background(), sent.Add(15*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, expired.ID, rows[0].ID)
	require.NotEqual(t, fresh.ID, rows[0].ID)
}
