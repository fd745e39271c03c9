package models

// AccountAccess is a granted, active membership of a user in an account.
// At most one row may exist per (account, user); the composite unique index
// backs the grantor's conditional insert.
type AccountAccess struct {
	BaseModel

	AccountID string `gorm:"type:uuid;not null;uniqueIndex:idx_account_accesses_account_user" json:"account_id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_account_accesses_account_user" json:"user_id"`
	Role      Role   `gorm:"not null" json:"role"`

	Account *Account `gorm:"constraint:OnDelete:CASCADE" json:"account,omitempty"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
