package repositories

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/db"
	"messaging-service/internal/models"
)

// testDB opens an in-memory sqlite database with migrations applied. The
// pool is pinned to one connection so every query sees the same database.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	return database
}

func createTestUser(t *testing.T, repo *UserRepo, username string) models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), username, "wallet-"+username, "pubkey-"+username)
	require.NoError(t, err)
	return user
}
