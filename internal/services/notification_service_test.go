package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/mail"
)

type capturingMailer struct {
	messages []mail.Message
}

func (m *capturingMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func TestInvitationCreatedEmailsInvitee(t *testing.T) {
	db := openServiceTestDB(t)
	mailer := &capturingMailer{}
	svc, err := NewNotificationService(db, mailer)
	require.NoError(t, err)

	svc.InvitationCreated(context.Background(), &models.Invitation{
		Email:     "bob@example.com",
		Role:      models.RoleMember,
		ExpiresAt: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	})

	require.Len(t, mailer.messages, 1)
	require.Equal(t, []string{"bob@example.com"}, mailer.messages[0].To)
	require.Contains(t, mailer.messages[0].Body, "member")
}

func TestInvitationAcceptedRecordsForInviter(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	inviter := seedUser(t, db, "alice@example.com", "Alice")
	account := seedAccount(t, db, "Acme", "acme")

	svc.InvitationAccepted(context.Background(), &models.Invitation{
		BaseModel:       models.BaseModel{ID: "inv-1"},
		AccountID:       account.ID,
		Email:           "bob@example.com",
		InvitedByUserID: inviter.ID,
	}, account, "user-1")

	rows, err := svc.ListForUser(context.Background(), inviter.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "invitation.accepted", rows[0].Type)
	require.Contains(t, rows[0].Message, "bob@example.com")
	require.Contains(t, rows[0].Message, "Acme")
}

func TestInvitationAcceptedWithoutInviterIsNoop(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	svc.InvitationAccepted(context.Background(), &models.Invitation{Email: "bob@example.com"}, nil, "user-1")

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestMarkRead(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	inviter := seedUser(t, db, "alice@example.com", "Alice")
	svc.InvitationDeclined(context.Background(), &models.Invitation{
		BaseModel:       models.BaseModel{ID: "inv-1"},
		Email:           "bob@example.com",
		InvitedByUserID: inviter.ID,
	})

	rows, err := svc.ListForUser(context.Background(), inviter.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, svc.MarkRead(context.Background(), inviter.ID, rows[0].ID))
	require.ErrorIs(t, svc.MarkRead(context.Background(), inviter.ID, "missing"), apperrors.ErrNotFound)
	require.ErrorIs(t, svc.MarkRead(context.Background(), "other-user", rows[0].ID), apperrors.ErrNotFound)
}

func TestPruneReadRemovesOnlyOldReadRows(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewNotificationService(db, nil)
	require.NoError(t, err)

	inviter := seedUser(t, db, "alice@example.com", "Alice")
	svc.InvitationDeclined(context.Background(), &models.Invitation{InvitedByUserID: inviter.ID, Email: "a@example.com"})
	svc.InvitationDeclined(context.Background(), &models.Invitation{InvitedByUserID: inviter.ID, Email: "b@example.com"})

	rows, err := svc.ListForUser(context.Background(), inviter.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, svc.MarkRead(context.Background(), inviter.ID, rows[0].ID))

	// Cutoff in the future: only the read row qualifies.
	pruned, err := svc.PruneRead(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	remaining, err := svc.ListForUser(context.Background(), inviter.ID, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
