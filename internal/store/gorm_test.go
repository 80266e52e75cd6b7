package store

import (
	"os"
	"testing"

	"github.com/chachabrian/propnest-backend/internal/config"
	"github.com/chachabrian/propnest-backend/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Runs against a throwaway postgres database, e.g.
// TEST_DATABASE_DSN="host=localhost user=postgres password=postgres dbname=propnest_test sslmode=disable"
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := database.Open(dsn, config.DBConfig{}, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestGormStoreContract(t *testing.T) {
	db := openTestDB(t)
	runStoreContract(t, func(t *testing.T) *Store {
		require.NoError(t, db.Exec(`TRUNCATE users, properties, bookings, payments, chats,
			chat_messages, direct_messages, otps RESTART IDENTITY CASCADE`).Error)
		return NewGorm(db)
	})
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
}
