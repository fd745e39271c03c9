package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
	apperrors "github.com/nferrante/accesshub/pkg/errors"
	"github.com/nferrante/accesshub/pkg/logger"
	"github.com/nferrante/accesshub/pkg/mail"
)

// NotificationService records in-app notifications for inviters and emails
// invitees. It implements Notifier; every delivery is best-effort and only
// logged on failure, never surfaced to the lifecycle.
type NotificationService struct {
	db     *gorm.DB
	mailer mail.Mailer
	log    *zap.Logger
}

// NewNotificationService constructs a NotificationService. The mailer may be
// nil, in which case only in-app notifications are recorded.
func NewNotificationService(db *gorm.DB, mailer mail.Mailer) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:     db,
		mailer: mailer,
		log:    logger.WithModule("notifications"),
	}, nil
}

// InvitationCreated emails the invitee about the new offer.
func (s *NotificationService) InvitationCreated(ctx context.Context, inv *models.Invitation) {
	if inv == nil {
		return
	}
	body := fmt.Sprintf(
		"Hello,\n\nYou have been invited to join an account as %s. The invitation expires on %s.\n\nIf you did not expect this email, you can ignore it.\n",
		inv.Role, inv.ExpiresAt.Format(time.RFC1123),
	)
	s.sendMail(ctx, inv.Email, "You have been invited", body)
}

// InvitationAccepted records a notification for the inviter.
func (s *NotificationService) InvitationAccepted(ctx context.Context, inv *models.Invitation, account *models.Account, userID string) {
	if inv == nil {
		return
	}
	accountName := ""
	if account != nil {
		accountName = account.Name
	}
	s.record(ctx, inv.InvitedByUserID, "invitation.accepted",
		"Invitation accepted",
		fmt.Sprintf("%s accepted the invitation to %s", inv.Email, accountName),
		map[string]any{
			"invitation_id": inv.ID,
			"account_id":    inv.AccountID,
			"user_id":       userID,
		},
	)
}

// InvitationDeclined records a notification for the inviter.
func (s *NotificationService) InvitationDeclined(ctx context.Context, inv *models.Invitation) {
	if inv == nil {
		return
	}
	s.record(ctx, inv.InvitedByUserID, "invitation.declined",
		"Invitation declined",
		fmt.Sprintf("%s declined the invitation", inv.Email),
		map[string]any{
			"invitation_id": inv.ID,
			"account_id":    inv.AccountID,
		},
	)
}

// InvitationRevoked emails the invitee that the offer was withdrawn.
func (s *NotificationService) InvitationRevoked(ctx context.Context, inv *models.Invitation) {
	if inv == nil {
		return
	}
	s.sendMail(ctx, inv.Email, "Invitation withdrawn",
		"Hello,\n\nYour pending invitation has been withdrawn by the account.\n")
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead sets the read flag on a notification owned by the user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// PruneRead deletes read notifications older than the cutoff and reports how
// many were removed.
func (s *NotificationService) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: prune read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) record(ctx context.Context, userID, kind, title, message string, metadata map[string]any) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}

	notification := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			notification.Metadata = datatypes.JSON(data)
		}
	}

	if err := s.db.WithContext(ensureContext(ctx)).Create(&notification).Error; err != nil {
		s.log.Warn("record notification failed",
			zap.String("type", kind),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) sendMail(ctx context.Context, to, subject, body string) {
	if s.mailer == nil {
		return
	}
	msg := mail.Message{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	}
	if err := s.mailer.Send(ensureContext(ctx), msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("send notification email failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
