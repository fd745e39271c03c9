package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nferrante/accesshub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
//
// The invitations table carries a composite unique index over
// (account_id, email, active); active is NULL on resolved rows, and all
// supported engines permit repeated NULLs in unique indexes, so the
// constraint only guards the single open invitation per pair.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.AccountAccess{},
		&models.Invitation{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
