package models

import "time"

// InvitationStatus is the derived lifecycle state of an invitation. It is
// never stored; StatusAt computes it from the timestamp fields on read.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "pending"
	StatusAccepted InvitationStatus = "accepted"
	StatusDeclined InvitationStatus = "declined"
	StatusRevoked  InvitationStatus = "revoked"
	StatusExpired  InvitationStatus = "expired"
)

// Terminal reports whether no further transition is permitted from the status.
func (s InvitationStatus) Terminal() bool {
	return s != StatusPending
}

func (s InvitationStatus) String() string {
	return string(s)
}

// Invitation is a standing, time-boxed offer for an email address to join an
// account with a role.
//
// At most one of AcceptedAt/DeclinedAt/RevokedAt is ever set; the store's
// conditional update is the only mutation path and enforces the exclusion.
// Active is true while the row still occupies the (account, email) slot and
// NULL once resolved or retired, so the composite unique index permits any
// number of historical rows per pair but only one open one.
type Invitation struct {
	BaseModel

	AccountID       string     `gorm:"type:uuid;not null;uniqueIndex:idx_invitations_account_email_active" json:"account_id"`
	Email           string     `gorm:"not null;uniqueIndex:idx_invitations_account_email_active" json:"email"`
	Role            Role       `gorm:"not null" json:"role"`
	InvitedByUserID string     `gorm:"type:uuid" json:"invited_by_user_id"`
	SentAt          time.Time  `gorm:"not null;index" json:"sent_at"`
	ExpiresAt       time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	DeclinedAt      *time.Time `json:"declined_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	Active          *bool      `gorm:"uniqueIndex:idx_invitations_account_email_active" json:"-"`

	Account *Account `gorm:"constraint:OnDelete:CASCADE" json:"account,omitempty"`
}

// StatusAt derives the lifecycle status at the given instant. Precedence:
// revoked > declined > accepted > expired > pending, so the result stays
// deterministic even if more than one terminal field were ever set.
func (i *Invitation) StatusAt(now time.Time) InvitationStatus {
	switch {
	case i.RevokedAt != nil:
		return StatusRevoked
	case i.DeclinedAt != nil:
		return StatusDeclined
	case i.AcceptedAt != nil:
		return StatusAccepted
	case now.After(i.ExpiresAt):
		return StatusExpired
	default:
		return StatusPending
	}
}

// Open returns the Active marker value carried by rows still holding the
// uniqueness slot for their (account, email) pair.
func Open() *bool {
	v := true
	return &v
}
