package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nferrante/accesshub/internal/database"
	"github.com/nferrante/accesshub/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A distinct shared-cache DSN per test keeps state isolated while every
	// gorm connection of the test still sees the same in-memory database.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func seedAccount(t *testing.T, db *gorm.DB, name, shortName string) *models.Account {
	t.Helper()

	accounts, err := NewAccountService(db)
	require.NoError(t, err)

	account, err := accounts.Create(context.Background(), CreateAccountInput{
		Name:      name,
		ShortName: shortName,
	})
	require.NoError(t, err)
	return account
}

func seedUser(t *testing.T, db *gorm.DB, email, name string) *models.User {
	t.Helper()

	users, err := NewUserService(db)
	require.NoError(t, err)

	user, err := users.Create(context.Background(), CreateUserInput{
		Email: email,
		Name:  name,
	})
	require.NoError(t, err)
	return user
}
