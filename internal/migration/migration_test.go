package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyCreatesTablesOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migration_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Apply(db))
	for _, table := range []string{"invitations", "registrations", "wallets", "wallet_credits", "notifications", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	// Idempotent on restart.
	require.NoError(t, Apply(db))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}
